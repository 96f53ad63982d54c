// Package memory keeps dialogue sessions in process memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m3rciful/scenebot/core/dialogue"
)

// Store is an in-memory dialogue.Store. Sessions are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	sessions map[dialogue.Key]*dialogue.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[dialogue.Key]*dialogue.Session)}
}

// Load returns a copy of the stored session.
func (s *Store) Load(_ context.Context, key dialogue.Key) (*dialogue.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, dialogue.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Save stores a copy of sess under key.
func (s *Store) Save(_ context.Context, key dialogue.Key, sess *dialogue.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess.Clone()
	return nil
}

// Delete removes the session. Absent keys are ignored.
func (s *Store) Delete(_ context.Context, key dialogue.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// List returns every stored key ordered by its string form.
func (s *Store) List(_ context.Context) ([]dialogue.Key, error) {
	s.mu.RLock()
	keys := make([]dialogue.Key, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Len reports how many sessions are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
