// Package postgres stores dialogue sessions in the dialogue_sessions table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scenebot/core/dialogue"
)

type sessionRow struct {
	Scene        string    `db:"scene"`
	Conversation string    `db:"conversation"`
	CurrentStep  int       `db:"current_step"`
	Answers      string    `db:"answers"`
	Canceled     bool      `db:"canceled"`
	Completed    bool      `db:"completed"`
	StartedAt    time.Time `db:"started_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Store implements dialogue.Store with sqlx.
type Store struct {
	db *sqlx.DB
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const selectSession = `
SELECT scene, conversation, current_step, answers, canceled, completed, started_at, updated_at
FROM dialogue_sessions
WHERE scene = $1 AND conversation = $2`

// Load reads one session.
func (s *Store) Load(ctx context.Context, key dialogue.Key) (*dialogue.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, selectSession, key.Scene, string(key.Conversation))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dialogue.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	sess := &dialogue.Session{
		Scene:       row.Scene,
		CurrentStep: row.CurrentStep,
		Answers:     make(map[int]string),
		Canceled:    row.Canceled,
		Completed:   row.Completed,
		StartedAt:   row.StartedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if len(row.Answers) > 0 {
		if err := json.Unmarshal([]byte(row.Answers), &sess.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return sess, nil
}

const upsertSession = `
INSERT INTO dialogue_sessions (scene, conversation, current_step, answers, canceled, completed, started_at, updated_at)
VALUES (:scene, :conversation, :current_step, CAST(:answers AS JSONB), :canceled, :completed, :started_at, :updated_at)
ON CONFLICT (scene, conversation) DO UPDATE SET
	current_step = EXCLUDED.current_step,
	answers      = EXCLUDED.answers,
	canceled     = EXCLUDED.canceled,
	completed    = EXCLUDED.completed,
	started_at   = EXCLUDED.started_at,
	updated_at   = EXCLUDED.updated_at`

// Save inserts or replaces the session.
func (s *Store) Save(ctx context.Context, key dialogue.Key, sess *dialogue.Session) error {
	answers := sess.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	row := sessionRow{
		Scene:        key.Scene,
		Conversation: string(key.Conversation),
		CurrentStep:  sess.CurrentStep,
		Answers:      string(raw),
		Canceled:     sess.Canceled,
		Completed:    sess.Completed,
		StartedAt:    sess.StartedAt,
		UpdatedAt:    sess.UpdatedAt,
	}
	if _, err := s.db.NamedExecContext(ctx, upsertSession, row); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, key dialogue.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM dialogue_sessions WHERE scene = $1 AND conversation = $2`,
		key.Scene, string(key.Conversation),
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns every stored key, most recently updated first.
func (s *Store) List(ctx context.Context) ([]dialogue.Key, error) {
	var rows []struct {
		Scene        string `db:"scene"`
		Conversation string `db:"conversation"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT scene, conversation FROM dialogue_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]dialogue.Key, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, dialogue.Key{Scene: r.Scene, Conversation: dialogue.ConversationID(r.Conversation)})
	}
	return keys, nil
}

// PurgeIdle deletes sessions not updated since cutoff and reports how many were removed.
func (s *Store) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dialogue_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
