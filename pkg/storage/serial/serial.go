package serial

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 10 * time.Second
)

// Option configures a Writer.
type Option func(*Writer)

// WithBufferSize sets the queue capacity. Default: 256.
func WithBufferSize(n int) Option {
	return func(w *Writer) { w.bufSize = n }
}

// WithOnError sets the callback invoked when the inner sink fails to persist
// a record. Default: logs a warning via slog.
func WithOnError(f func(record.Record, error)) Option {
	return func(w *Writer) { w.errFunc = f }
}

// WithOnWritten sets the callback invoked after the inner sink has persisted
// a record. Default: none.
func WithOnWritten(f func(record.Record)) Option {
	return func(w *Writer) { w.writtenFunc = f }
}

// WithDrainTimeout bounds how long Close waits for queued records.
func WithDrainTimeout(d time.Duration) Option {
	return func(w *Writer) { w.drainTimeout = d }
}

// Writer funnels records from any number of producers through one goroutine
// into the inner sink, so the inner sink only ever sees a single writer.
// Persist returns once the record is queued; write failures go to the error
// callback.
type Writer struct {
	inner        storage.Sink
	ch           chan record.Record
	done         chan struct{}
	errFunc      func(record.Record, error)
	writtenFunc  func(record.Record)
	bufSize      int
	drainTimeout time.Duration

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps inner and starts the drain goroutine.
func New(inner storage.Sink, opts ...Option) *Writer {
	w := &Writer{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc: func(rec record.Record, err error) {
			slog.Warn("serial writer: persist failed", "record", rec.Label(), "error", err)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ch = make(chan record.Record, w.bufSize)
	w.done = make(chan struct{})
	go w.drain()
	return w
}

// Persist queues rec. It blocks while the queue is full, unless ctx ends.
func (w *Writer) Persist(ctx context.Context, rec record.Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("serial writer: %w: closed", storage.ErrIO)
	}
	// Queue whenever there is room; ctx only bounds the wait on a full queue.
	select {
	case w.ch <- rec:
		return nil
	default:
	}
	select {
	case w.ch <- rec:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("serial writer: %w: enqueue %s: %w", storage.ErrIO, rec.Label(), ctx.Err())
	}
}

// Queued reports that Persist only enqueues; the write happens later.
func (w *Writer) Queued() bool { return true }

// Close stops accepting records, waits for the queue to drain (bounded by the
// drain timeout) and closes the inner sink.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()

		t := time.NewTimer(w.drainTimeout)
		defer t.Stop()
		select {
		case <-w.done:
		case <-t.C:
			slog.Warn("serial writer: drain timed out", "pending", len(w.ch))
		}
		w.closeErr = w.inner.Close()
	})
	return w.closeErr
}

func (w *Writer) drain() {
	defer close(w.done)
	for rec := range w.ch {
		if err := w.inner.Persist(context.Background(), rec); err != nil {
			w.errFunc(rec, err)
			continue
		}
		if w.writtenFunc != nil {
			w.writtenFunc(rec)
		}
	}
}
