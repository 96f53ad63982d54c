package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSubmitKeepsOrderPerKey(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 2})

	var mu sync.Mutex
	got := map[string][]int{}
	for i := range 40 {
		key := []string{"chat-1", "chat-2"}[i%2]
		require.NoError(t, d.Submit(context.Background(), Job{Key: key, Run: func() error {
			mu.Lock()
			defer mu.Unlock()
			got[key] = append(got[key], i)
			return nil
		}}))
	}
	d.Close()

	for _, seq := range got {
		assert.Len(t, seq, 20)
		assert.IsIncreasing(t, seq)
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	calls := 0
	require.NoError(t, d.Submit(context.Background(), Job{Key: "c", Run: func() error {
		calls++
		if calls < 3 {
			return timeoutErr{}
		}
		return nil
	}}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	calls := 0
	require.NoError(t, d.Submit(context.Background(), Job{Run: func() error {
		calls++
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	}}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestSubmitAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Submit(context.Background(), Job{Run: func() error { return nil }})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestSubmitRejectsNilRun(t *testing.T) {
	d := NewDispatcher(Options{})
	defer d.Close()
	require.Error(t, d.Submit(context.Background(), Job{}))
}

func TestSubmitWaitsForFullLane(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, d.Submit(context.Background(), Job{Run: func() error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, d.Submit(context.Background(), Job{Run: func() error { return nil }}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Submit(ctx, Job{Run: func() error { return nil }})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	d.Close()
}

func TestTransient(t *testing.T) {
	assert.False(t, Transient(nil))
	assert.True(t, Transient(timeoutErr{}))
	assert.True(t, Transient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, Transient(tele.FloodError{RetryAfter: 2}))
	assert.False(t, Transient(errors.New("bad request")))
}

func TestFloodWait(t *testing.T) {
	assert.Equal(t, 3*time.Second, floodWait(tele.FloodError{RetryAfter: 3}))
	assert.Zero(t, floodWait(errors.New("x")))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{tele.FloodError{RetryAfter: 1}, "flood"},
		{context.DeadlineExceeded, "timeout"},
		{&net.DNSError{Err: "no such host", Name: "api.telegram.org"}, "dns"},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, "http_4xx"},
		{errors.New("telegram: internal error (502)"), "http_5xx"},
		{errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_CC/sendMessage": i/o timeout`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": i/o timeout`, redact(err))
	assert.Empty(t, redact(nil))
}
