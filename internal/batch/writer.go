// Package batch buffers records and writes them in fixed-size batches,
// pausing after every full batch so downstream writes stay throttled.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/foxseedlab/wrapup/internal/metrics"
	"github.com/foxseedlab/wrapup/internal/retry"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultThreshold = 1000
	DefaultCooldown  = 100 * time.Millisecond
)

// FlushFunc persists one batch. Implementations must tolerate replays of
// records that were already stored.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

type Config struct {
	Name      string
	Threshold int
	Cooldown  time.Duration
	// FlushInterval flushes a partial buffer periodically while Run is
	// consuming a long-lived stream. Zero disables it.
	FlushInterval time.Duration
	Retry         retry.Policy
}

type Stats struct {
	Offered       int
	Flushes       int
	Attempted     int
	FailedBatches int
	FailedRows    int
}

// Writer is owned by a single goroutine; it is not safe for concurrent use.
type Writer[T any] struct {
	cfg   Config
	flush FlushFunc[T]
	clock clockwork.Clock
	buf   []T
	stats Stats
}

func NewWriter[T any](cfg Config, flush FlushFunc[T], clock clockwork.Clock) *Writer[T] {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer[T]{
		cfg:   cfg,
		flush: flush,
		clock: clock,
		buf:   make([]T, 0, cfg.Threshold),
	}
}

// Add buffers rec. When the buffer reaches the threshold it is flushed and
// Add waits for the cooldown before returning. The only error is ctx ending
// during that wait; the flushed batch is not affected by it.
func (w *Writer[T]) Add(ctx context.Context, rec T) error {
	w.buf = append(w.buf, rec)
	w.stats.Offered++
	if len(w.buf) < w.cfg.Threshold {
		return nil
	}
	w.flushBuffer(ctx)
	return w.cooldown(ctx)
}

// Close flushes whatever is buffered, regardless of size, and returns the
// final stats. Pass a context that is not cancelled to avoid losing the
// remainder on shutdown.
func (w *Writer[T]) Close(ctx context.Context) Stats {
	w.flushBuffer(ctx)
	return w.stats
}

func (w *Writer[T]) Stats() Stats {
	return w.stats
}

func (w *Writer[T]) Buffered() int {
	return len(w.buf)
}

// Run consumes in until it is closed or ctx ends, then flushes the
// remainder with a context detached from ctx's cancellation.
func (w *Writer[T]) Run(ctx context.Context, in <-chan T) Stats {
	var tick <-chan time.Time
	if w.cfg.FlushInterval > 0 {
		ticker := w.clock.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("batch writer shutting down", "writer", w.cfg.Name, "buffered", len(w.buf))
			return w.Close(context.WithoutCancel(ctx))

		case rec, ok := <-in:
			if !ok {
				slog.Info("batch writer input closed", "writer", w.cfg.Name, "buffered", len(w.buf))
				return w.Close(context.WithoutCancel(ctx))
			}
			_ = w.Add(ctx, rec)

		case <-tick:
			if len(w.buf) > 0 {
				slog.Debug("batch flush interval reached", "writer", w.cfg.Name, "buffered", len(w.buf))
				w.flushBuffer(ctx)
			}
		}
	}
}

func (w *Writer[T]) flushBuffer(ctx context.Context) {
	if len(w.buf) == 0 {
		return
	}
	batch := w.buf
	w.buf = make([]T, 0, w.cfg.Threshold)

	w.stats.Flushes++
	w.stats.Attempted += len(batch)
	metrics.BatchRowsTotal.WithLabelValues(w.cfg.Name).Add(float64(len(batch)))

	policy := w.cfg.Retry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("batch flush failed; retrying", "writer", w.cfg.Name, "error", err, "attempt", attempt, "backoff", backoff, "rows", len(batch))
	}

	started := w.clock.Now()
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return w.flush(ctx, batch)
	})
	metrics.BatchFlushDuration.WithLabelValues(w.cfg.Name).Observe(w.clock.Since(started).Seconds())
	if err != nil {
		w.stats.FailedBatches++
		w.stats.FailedRows += len(batch)
		metrics.BatchFlushesTotal.WithLabelValues(w.cfg.Name, "error").Inc()
		slog.Error("batch flush failed; dropping batch", "writer", w.cfg.Name, "error", err, "rows", len(batch))
		return
	}
	metrics.BatchFlushesTotal.WithLabelValues(w.cfg.Name, "ok").Inc()
	slog.Debug("batch flushed", "writer", w.cfg.Name, "rows", len(batch))
}

func (w *Writer[T]) cooldown(ctx context.Context) error {
	if w.cfg.Cooldown <= 0 {
		return nil
	}
	select {
	case <-w.clock.After(w.cfg.Cooldown):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
