// Package dialoguetest provides helpers for testing dialogue stores and machines.
package dialoguetest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/dialogue"
)

// RunStoreContract verifies that a Store honours the behaviour the Machine relies on.
// Stores that also implement dialogue.Lister get the listing checks.
func RunStoreContract(t *testing.T, store dialogue.Store) {
	t.Helper()
	ctx := context.Background()
	scene := "contract" + strconv.FormatInt(time.Now().UnixNano(), 36)
	key := dialogue.Key{Scene: scene, Conversation: dialogue.NewConversationID(-100, 42)}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		s := dialogue.NewSession(scene, started)
		s.CurrentStep = 2
		s.Answers[0] = "✅ Yes"
		s.Answers[1] = "Alice"
		s.UpdatedAt = started.Add(time.Minute)

		require.NoError(t, store.Save(ctx, key, s))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, scene, loaded.Scene)
		assert.Equal(t, 2, loaded.CurrentStep)
		assert.Equal(t, map[int]string{0: "✅ Yes", 1: "Alice"}, loaded.Answers)
		assert.False(t, loaded.Terminal())
		assert.True(t, started.Equal(loaded.StartedAt))
		assert.True(t, s.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := dialogue.NewSession(scene, started)
		s.CurrentStep = 5
		s.Completed = true
		s.Answers[4] = "Great bot!"
		require.NoError(t, store.Save(ctx, key, s))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 5, loaded.CurrentStep)
		assert.True(t, loaded.Completed)
		assert.Equal(t, map[int]string{4: "Great bot!"}, loaded.Answers)
	})

	t.Run("Isolation", func(t *testing.T) {
		s := dialogue.NewSession(scene, started)
		s.Answers[0] = "original"
		require.NoError(t, store.Save(ctx, key, s))
		s.Answers[0] = "mutated after save"

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "original", loaded.Answers[0])

		loaded.Answers[0] = "mutated after load"
		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "original", again.Answers[0])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		other := dialogue.Key{Scene: scene, Conversation: dialogue.NewConversationID(1, 1)}
		_, err := store.Load(ctx, other)
		assert.ErrorIs(t, err, dialogue.ErrSessionNotFound)
	})

	t.Run("Scenes are separate", func(t *testing.T) {
		other := dialogue.Key{Scene: scene + "x", Conversation: key.Conversation}
		_, err := store.Load(ctx, other)
		assert.ErrorIs(t, err, dialogue.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, dialogue.NewSession(scene, started)))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, dialogue.ErrSessionNotFound)

		assert.NoError(t, store.Delete(ctx, key), "deleting an absent key is not an error")
	})

	lister, ok := store.(dialogue.Lister)
	if !ok {
		return
	}
	t.Run("List", func(t *testing.T) {
		k1 := dialogue.Key{Scene: scene, Conversation: dialogue.NewConversationID(1, 2)}
		k2 := dialogue.Key{Scene: scene, Conversation: dialogue.NewConversationID(3, 4)}
		require.NoError(t, store.Save(ctx, k1, dialogue.NewSession(scene, started)))
		require.NoError(t, store.Save(ctx, k2, dialogue.NewSession(scene, started)))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := lister.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
		assert.NotContains(t, keys, key)
	})
}
