package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency    = 6
	DefaultPagesPerSecond = 20
	DefaultQueueSize      = 1000
)

// errPageBeyondDeadline is returned when the next page cannot be fetched
// before the scan deadline. The limiter reports this before ctx is done.
var errPageBeyondDeadline = errors.New("next page would exceed the scan deadline")

type TraversalConfig struct {
	Concurrency    int
	PagesPerSecond float64
	QueueSize      int
}

type ChannelWarning struct {
	ChannelID   string
	ChannelName string
	Err         error
}

type TraversalReport struct {
	ChannelsScanned int
	ChannelsSkipped int
	Pages           int
	Warnings        []ChannelWarning
	Interrupted     bool
}

// Traversal walks channel histories backwards down to a cutoff with a fixed
// number of channels in flight. Every page fetch shares one rate limiter.
type Traversal struct {
	history     discord.History
	limiter     *rate.Limiter
	concurrency int
	queueSize   int
	pageSize    int
}

func NewTraversal(history discord.History, cfg TraversalConfig) *Traversal {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PagesPerSecond <= 0 {
		cfg.PagesPerSecond = DefaultPagesPerSecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Traversal{
		history:     history,
		limiter:     rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), cfg.Concurrency),
		concurrency: cfg.Concurrency,
		queueSize:   cfg.QueueSize,
		pageSize:    discord.MessagePageSize,
	}
}

// TraversalRun is one in-progress traversal. Messages is closed once every
// channel has finished; Report is final after that.
type TraversalRun struct {
	Messages <-chan discord.Message

	mu     sync.Mutex
	report TraversalReport
}

func (r *TraversalRun) Report() TraversalReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := r.report
	report.Warnings = append([]ChannelWarning(nil), r.report.Warnings...)
	return report
}

func (r *TraversalRun) finishChannel(ch discord.Channel, pages int, err error, cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Pages += pages
	switch {
	case cancelled:
		r.report.Interrupted = true
	case err != nil:
		r.report.Warnings = append(r.report.Warnings, ChannelWarning{ChannelID: ch.ID, ChannelName: ch.Name, Err: err})
	default:
		r.report.ChannelsScanned++
	}
}

func (r *TraversalRun) skipChannel() {
	r.mu.Lock()
	r.report.ChannelsSkipped++
	r.mu.Unlock()
}

func (r *TraversalRun) interrupt() {
	r.mu.Lock()
	r.report.Interrupted = true
	r.mu.Unlock()
}

// Start yields every message newer than cutoff from the readable channels.
// Order holds within a channel (newest first) but not across channels.
// Channels beyond the concurrency bound wait for a free slot.
func (t *Traversal) Start(ctx context.Context, channels []discord.Channel, cutoff time.Time) *TraversalRun {
	out := make(chan discord.Message, t.queueSize)
	run := &TraversalRun{Messages: out}

	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(t.concurrency)
		for _, ch := range channels {
			if !ch.CanRead {
				run.skipChannel()
				continue
			}
			if ctx.Err() != nil {
				run.interrupt()
				break
			}
			g.Go(func() error {
				pages, err := t.traverseChannel(ctx, ch, cutoff, out)
				cancelled := interrupted(ctx, err)
				if err != nil && !cancelled {
					metrics.ScanChannelFailuresTotal.Inc()
					slog.Warn("channel traversal failed; continuing with other channels", "error", err, "channel_id", ch.ID, "channel_name", ch.Name, "pages", pages)
				}
				run.finishChannel(ch, pages, err, cancelled)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return run
}

func (t *Traversal) traverseChannel(ctx context.Context, ch discord.Channel, cutoff time.Time, out chan<- discord.Message) (int, error) {
	before := ""
	pages := 0
	for {
		if err := t.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			return pages, fmt.Errorf("%w: %w", errPageBeyondDeadline, err)
		}
		page, err := t.history.FetchMessages(ctx, ch.ID, before, t.pageSize)
		if err != nil {
			return pages, err
		}
		pages++
		metrics.ScanPagesTotal.Inc()

		for _, msg := range page.Messages {
			if !msg.Timestamp.After(cutoff) {
				return pages, nil
			}
			if msg.ChannelName == "" {
				msg.ChannelName = ch.Name
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return pages, ctx.Err()
			}
		}
		if page.Fetched < t.pageSize || page.OldestID == "" {
			return pages, nil
		}
		before = page.OldestID
	}
}

func interrupted(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errPageBeyondDeadline) {
		return true
	}
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}
