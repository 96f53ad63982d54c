package dialogue

import (
	"context"
	"time"
)

// Store persists sessions. Load returns ErrSessionNotFound for absent keys.
// Implementations must be safe for concurrent use and must not share
// the Answers map with callers.
type Store interface {
	Load(ctx context.Context, key Key) (*Session, error)
	Save(ctx context.Context, key Key, s *Session) error
	Delete(ctx context.Context, key Key) error
}

// Lister is implemented by stores that can enumerate their sessions.
type Lister interface {
	List(ctx context.Context) ([]Key, error)
}

// Replier delivers messages to a conversation. Delivery is fire-and-forget from the
// machine's point of view: errors are logged, never turned into state changes.
type Replier interface {
	Reply(ctx context.Context, id ConversationID, r Reply) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, id ConversationID, r Reply) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, id ConversationID, r Reply) error {
	return f(ctx, id, r)
}

// Observer receives transition notifications, e.g. for metrics.
type Observer interface {
	Entered(scene string)
	Advanced(scene string, step int)
	Rejected(scene string, step int)
	Retreated(scene string, step int)
	Completed(scene string, took time.Duration)
	Canceled(scene string, step int)
	Expired(scene string)
}

type nopObserver struct{}

func (nopObserver) Entered(string)                  {}
func (nopObserver) Advanced(string, int)            {}
func (nopObserver) Rejected(string, int)            {}
func (nopObserver) Retreated(string, int)           {}
func (nopObserver) Completed(string, time.Duration) {}
func (nopObserver) Canceled(string, int)            {}
func (nopObserver) Expired(string)                  {}
