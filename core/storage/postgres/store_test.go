package postgres_test

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/database"
	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/dialogue/dialoguetest"
	"github.com/m3rciful/scenebot/core/storage/postgres"
)

// openTestDB connects to SCENEBOT_TEST_DSN and applies the schema, or skips.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("SCENEBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("SCENEBOT_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	up, err := fs.ReadFile(database.MigrationsFS(), "0001_dialogue_sessions.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(up))
	require.NoError(t, err)
	return db
}

func TestPostgresStore_Contract(t *testing.T) {
	db := openTestDB(t)
	dialoguetest.RunStoreContract(t, postgres.New(db))
}

func TestPostgresStore_PurgeIdle(t *testing.T) {
	db := openTestDB(t)
	store := postgres.New(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).UTC()
	key := dialogue.Key{Scene: "purge", Conversation: dialogue.NewConversationID(9, 9)}
	sess := dialogue.NewSession("purge", old)
	require.NoError(t, store.Save(ctx, key, sess))

	n, err := store.PurgeIdle(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, dialogue.ErrSessionNotFound)
}
