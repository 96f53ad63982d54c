// Package sender runs outbound Bot API calls off the update goroutine.
// Calls for the same chat keep their order; different chats proceed in
// parallel.
package sender

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("telegram sender: queue closed")

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// Workers is the number of lanes, each served by one goroutine.
	Workers int
	// QueueSize bounds each lane; Submit blocks while its lane is full.
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one outbound call.
type Job struct {
	// Key selects the lane. Jobs with equal keys run one at a time in
	// submission order; an empty key spreads jobs round-robin.
	Key      string
	Action   string
	Endpoint string
	// Run performs the call. It may be invoked again on transient errors.
	Run func() error
}

type job struct {
	ctx context.Context
	Job
}

// Dispatcher executes jobs on keyed lanes with retries.
type Dispatcher struct {
	opts  Options
	lanes []chan job
	next  atomic.Uint32
	wg    sync.WaitGroup
	errs  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the lane workers; zero options get defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.lanes {
		d.lanes[i] = make(chan job, opts.QueueSize)
		go d.work(d.lanes[i])
	}
	return d
}

func (d *Dispatcher) lane(key string) chan job {
	n := uint32(len(d.lanes))
	if key == "" {
		return d.lanes[d.next.Add(1)%n]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return d.lanes[h.Sum32()%n]
}

// Submit queues j, blocking while its lane is full. It returns ctx.Err()
// when ctx ends first and ErrQueueClosed after Close. ctx also carries the
// logging metadata for the job.
func (d *Dispatcher) Submit(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lane(j.Key) <- job{ctx: ctx, Job: j}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, l := range d.lanes {
			close(l)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(lane <-chan job) {
	defer d.wg.Done()
	for j := range lane {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt := 0
	var err error
	for {
		attempt++
		if err = j.Run(); err == nil || attempt > d.opts.MaxRetries || !Transient(err) {
			break
		}
		delay := max(d.opts.RetryBackoff*time.Duration(attempt), floodWait(err))
		metrics.IncSend("retry")
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("err", redact(err)),
		)...)
		if !sleep(ctx, delay) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
			break
		}
	}

	took := time.Since(start)
	if err == nil {
		metrics.IncSend("ok")
		logger.Debug(j.ctx, "tg.sender", "send.ok", j.attrs(
			slog.String("status", "ok"),
			slog.Int("attempts", attempt),
			slog.Duration("duration", took),
		)...)
		return
	}
	metrics.IncSend("fail")
	d.errs.Add(1)
	attrs := j.attrs(
		slog.String("status", "fail"),
		slog.Int("attempts", attempt),
		slog.Duration("duration", took),
		slog.String("err", redact(err)),
		slog.String("err_code", Classify(err)),
	)
	if code := httpStatus(err); code > 0 {
		attrs = append(attrs, slog.Int("http_code", code))
	}
	logger.Error(j.ctx, "tg.sender", "send.fail", attrs...)
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	return append([]slog.Attr{
		slog.String("action", j.Action),
		slog.String("endpoint", j.Endpoint),
	}, extra...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
