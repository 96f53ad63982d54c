// Package storage holds the locking primitives shared by the session stores.
package storage

import (
	"context"
	"sync"
	"time"
)

// UnlockFunc releases a lock taken by a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker takes a lock shared between processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serialises work per key inside one process.
// Entries are reference counted and dropped once unused.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *KeyedMutex) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *KeyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *KeyedMutex) Lock(key string) func() {
	entry := k.acquire(key)
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.release(key)
	}
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Guard combines the in-process KeyedMutex with an optional distributed Locker.
type Guard struct {
	local  *KeyedMutex
	remote Locker
	ttl    time.Duration
}

// NewGuard builds a Guard. remote may be nil.
func NewGuard(remote Locker, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Guard{local: NewKeyedMutex(), remote: remote, ttl: ttl}
}

// Do runs fn while holding the lock for key.
// A failed remote unlock is reported to onUnlockErr; the lock then expires via its TTL.
func (g *Guard) Do(ctx context.Context, key string, fn func(context.Context) error, onUnlockErr func(error)) error {
	unlock := g.local.Lock(key)
	defer unlock()

	if g.remote != nil {
		release, err := g.remote.Lock(ctx, key, g.ttl)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil && onUnlockErr != nil {
				onUnlockErr(err)
			}
		}()
	}
	return fn(ctx)
}
