package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a logger's background machinery.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// logJob pairs a record with the handler that should format it, so
// derived handlers (WithAttrs/WithGroup) keep their attributes even
// though all of them feed one queue.
type logJob struct {
	h   slog.Handler
	rec slog.Record
}

type asyncCore struct {
	jobs    chan logJob
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func (c *asyncCore) drain() {
	defer c.wg.Done()
	for j := range c.jobs {
		_ = j.h.Handle(context.Background(), j.rec)
	}
}

// AsyncHandler decouples request handling from log I/O: Handle enqueues
// onto a bounded queue drained by a worker pool, and drops the record
// when the queue is full rather than block.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler starts workers draining a queue of the given depth.
func NewAsyncHandler(inner slog.Handler, depth, workers int) *AsyncHandler {
	core := &asyncCore{jobs: make(chan logJob, depth)}
	for range workers {
		core.wg.Add(1)
		go core.drain()
	}
	return &AsyncHandler{inner: inner, core: core}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.jobs <- logJob{h: h.inner, rec: rec}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount reports how many records were shed under backpressure.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops intake and waits for the workers to finish the queue.
func (h *AsyncHandler) Close() {
	close(h.core.jobs)
	h.core.wg.Wait()
}
