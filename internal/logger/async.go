package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered log records. New returns one in every mode so
// callers can defer it unconditionally.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from encoding. Recognition requests
// log on the hot path (cache lookups, provider calls); the handler absorbs
// those records into a bounded queue drained by worker goroutines, shedding
// records instead of blocking when the queue is full.
type AsyncHandler struct {
	next    slog.Handler
	queue   chan slog.Record
	workers *sync.WaitGroup
	drops   *atomic.Int64
}

// NewAsyncHandler buffers records for next in a queue of the given capacity,
// drained by the given number of workers.
func NewAsyncHandler(next slog.Handler, capacity, workers int) *AsyncHandler {
	h := &AsyncHandler{
		next:    next,
		queue:   make(chan slog.Record, capacity),
		workers: &sync.WaitGroup{},
		drops:   &atomic.Int64{},
	}
	for range workers {
		h.workers.Add(1)
		go h.pump()
	}
	return h
}

func (h *AsyncHandler) pump() {
	defer h.workers.Done()
	for rec := range h.queue {
		_ = h.next.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full so a slow
// sink cannot stall a request.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler takes records by value
	select {
	case h.queue <- rec:
	default:
		h.drops.Add(1)
	}
	return nil
}

// WithAttrs derives a handler sharing this one's queue and workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(h.next.WithAttrs(attrs))
}

// WithGroup derives a handler sharing this one's queue and workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.next.WithGroup(name))
}

func (h *AsyncHandler) derive(next slog.Handler) *AsyncHandler {
	return &AsyncHandler{
		next:    next,
		queue:   h.queue,
		workers: h.workers,
		drops:   h.drops,
	}
}

// Dropped returns how many records were shed because the queue was full.
func (h *AsyncHandler) Dropped() int64 {
	return h.drops.Load()
}

// Close drains the queue and stops the workers. Shed records are reported
// through the wrapped handler so sustained overload is visible in the log
// itself.
func (h *AsyncHandler) Close() {
	close(h.queue)
	h.workers.Wait()

	if n := h.drops.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn,
			fmt.Sprintf("async logger dropped %d records", n), 0)
		_ = h.next.Handle(context.Background(), rec)
	}
}
