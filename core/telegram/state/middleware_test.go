package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/storage"
)

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Duration) (storage.UnlockFunc, error) {
	return nil, errors.New("lock busy")
}

func TestSerializeRunsOneUpdatePerConversation(t *testing.T) {
	f := newStageFixture(t)
	var inFlight, peak atomic.Int32
	h := Serialize(storage.NewGuard(nil, 0))(func(tele.Context) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h(f.text("hi")))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestSerializeSurfacesLockFailure(t *testing.T) {
	f := newStageFixture(t)
	called := false
	h := Serialize(storage.NewGuard(failingLocker{}, time.Second))(func(tele.Context) error {
		called = true
		return nil
	})
	require.Error(t, h(f.text("hi")))
	assert.False(t, called)
}

func TestSerializePassesUpdatesWithoutConversation(t *testing.T) {
	f := newStageFixture(t)
	called := false
	h := Serialize(storage.NewGuard(failingLocker{}, time.Second))(func(tele.Context) error {
		called = true
		return nil
	})
	require.NoError(t, h(f.bot.NewContext(tele.Update{ID: 9})))
	assert.True(t, called)
}
