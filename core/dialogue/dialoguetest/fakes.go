package dialoguetest

import (
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/scenebot/core/dialogue"
)

// Sent is one reply captured by Recorder.
type Sent struct {
	Conversation dialogue.ConversationID
	Reply        dialogue.Reply
}

// Recorder is a Replier that keeps every reply in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned from every Reply call after recording it.
	Err error
}

// Reply records r.
func (r *Recorder) Reply(_ context.Context, id dialogue.ConversationID, reply dialogue.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Conversation: id, Reply: reply})
	return r.Err
}

// Sent returns a copy of the recorded replies.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Texts returns the recorded reply texts in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.Reply.Text
	}
	return out
}

// Last returns the most recent reply.
func (r *Recorder) Last() (dialogue.Reply, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return dialogue.Reply{}, false
	}
	return r.sent[len(r.sent)-1].Reply, true
}

// Reset drops all recorded replies.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// ErrInjected is the failure returned by FlakyStore.
var ErrInjected = errors.New("dialoguetest: injected store failure")

// FlakyStore wraps a Store and fails selected operations on demand.
type FlakyStore struct {
	dialogue.Store

	mu         sync.Mutex
	failLoad   bool
	failSave   bool
	failDelete bool
}

// NewFlakyStore wraps s.
func NewFlakyStore(s dialogue.Store) *FlakyStore {
	return &FlakyStore{Store: s}
}

// FailLoad toggles Load failures.
func (f *FlakyStore) FailLoad(v bool) { f.set(&f.failLoad, v) }

// FailSave toggles Save failures.
func (f *FlakyStore) FailSave(v bool) { f.set(&f.failSave, v) }

// FailDelete toggles Delete failures.
func (f *FlakyStore) FailDelete(v bool) { f.set(&f.failDelete, v) }

func (f *FlakyStore) set(flag *bool, v bool) {
	f.mu.Lock()
	*flag = v
	f.mu.Unlock()
}

func (f *FlakyStore) get(flag *bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *flag
}

func (f *FlakyStore) Load(ctx context.Context, key dialogue.Key) (*dialogue.Session, error) {
	if f.get(&f.failLoad) {
		return nil, ErrInjected
	}
	return f.Store.Load(ctx, key)
}

func (f *FlakyStore) Save(ctx context.Context, key dialogue.Key, s *dialogue.Session) error {
	if f.get(&f.failSave) {
		return ErrInjected
	}
	return f.Store.Save(ctx, key, s)
}

func (f *FlakyStore) Delete(ctx context.Context, key dialogue.Key) error {
	if f.get(&f.failDelete) {
		return ErrInjected
	}
	return f.Store.Delete(ctx, key)
}
