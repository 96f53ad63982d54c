package logger

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// output is a sink that only receives lines at or above minLevel.
type output struct {
	w        io.Writer
	minLevel slog.Level
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter moves formatting off the hot path: lines are queued and a
// single goroutine fans them out to buffered outputs, flushing whenever
// the queue runs dry.
type asyncWriter struct {
	queue   chan entry
	flushes chan chan error
	done    chan struct{}

	sendMu sync.RWMutex
	closed bool

	sinks  []*bufio.Writer
	levels []slog.Level

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(outputs []output, queueSize int) *asyncWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &asyncWriter{
		queue:   make(chan entry, queueSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, o := range outputs {
		if o.w == nil {
			continue
		}
		w.sinks = append(w.sinks, bufio.NewWriterSize(o.w, 32*1024))
		w.levels = append(w.levels, o.minLevel)
	}
	go w.run()
	return w
}

// WriteLine queues a copy of line. It blocks when the queue is full rather
// than dropping output.
func (w *asyncWriter) WriteLine(level slog.Level, line []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- entry{level: level, line: bytes.Clone(line)}
	return nil
}

// Flush returns once every line queued before the call reached the outputs.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.failure()
	}
}

// Close drains the queue and reports the first write error seen.
func (w *asyncWriter) Close() error {
	w.sendMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.sendMu.Unlock()
	<-w.done
	return w.failure()
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.fail(w.flush())
				return
			}
			w.fail(w.write(e))
			if len(w.queue) == 0 {
				w.fail(w.flush())
			}
		case ack := <-w.flushes:
			w.drain()
			ack <- w.flush()
		}
	}
}

func (w *asyncWriter) drain() {
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				return
			}
			w.fail(w.write(e))
		default:
			return
		}
	}
}

func (w *asyncWriter) write(e entry) error {
	for i, sink := range w.sinks {
		if e.level < w.levels[i] {
			continue
		}
		if _, err := sink.Write(e.line); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) failure() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
