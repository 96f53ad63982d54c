package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/dialogue/dialoguetest"
	"github.com/m3rciful/scenebot/core/storage/memory"
)

func TestMemoryStore_Contract(t *testing.T) {
	dialoguetest.RunStoreContract(t, memory.New())
}

func TestMemoryStore_ListOrdered(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now()
	b := dialogue.Key{Scene: "wizard", Conversation: dialogue.NewConversationID(1, 1)}
	a := dialogue.Key{Scene: "scene", Conversation: dialogue.NewConversationID(2, 2)}
	require.NoError(t, store.Save(ctx, b, dialogue.NewSession("wizard", now)))
	require.NoError(t, store.Save(ctx, a, dialogue.NewSession("scene", now)))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dialogue.Key{a, b}, keys)
	assert.Equal(t, 2, store.Len())
}
