// Package scan aggregates a guild's message history since a cutoff and
// archives message metadata on the way.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/foxseedlab/wrapup/internal/metrics"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Result struct {
	ScanID          string
	Cutoff          time.Time
	Summary         *Summary
	ChannelsScanned int
	ChannelsSkipped int
	Pages           int
	Warnings        []ChannelWarning
	Writes          batch.Stats
	Stored          int
	DatabaseTotal   int64
	Interrupted     bool
	Elapsed         time.Duration
}

// Partial reports whether some readable channel could not be scanned.
func (r *Result) Partial() bool {
	return len(r.Warnings) > 0 || r.Interrupted
}

type Scanner struct {
	history   discord.History
	repo      repository.MessageRepository
	extractor *emoji.Extractor
	traversal *Traversal
	batchCfg  batch.Config
	clock     clockwork.Clock
}

func NewScanner(history discord.History, repo repository.MessageRepository, extractor *emoji.Extractor, traversalCfg TraversalConfig, batchCfg batch.Config, clock clockwork.Clock) *Scanner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if batchCfg.Name == "" {
		batchCfg.Name = "scan_messages"
	}
	return &Scanner{
		history:   history,
		repo:      repo,
		extractor: extractor,
		traversal: NewTraversal(history, traversalCfg),
		batchCfg:  batchCfg,
		clock:     clock,
	}
}

// Scan aggregates every text channel of the guild.
func (s *Scanner) Scan(ctx context.Context, guildID string, cutoff time.Time) (*Result, error) {
	if cutoff.IsZero() {
		return nil, ErrInvalidCutoff
	}
	channels, err := s.history.ListTextChannels(ctx, guildID)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list channels of guild %s: %w", guildID, err)
	}
	return s.ScanChannels(ctx, channels, cutoff)
}

// ScanChannels aggregates messages newer than cutoff from channels and
// writes their metadata in throttled batches. If ctx ends mid-scan the
// traversal stops and what was already received is still aggregated and
// flushed.
func (s *Scanner) ScanChannels(ctx context.Context, channels []discord.Channel, cutoff time.Time) (*Result, error) {
	if cutoff.IsZero() {
		return nil, ErrInvalidCutoff
	}
	started := s.clock.Now()
	scanID := uuid.NewString()
	log := slog.With("scan_id", scanID)
	log.Info("scan started", "channels", len(channels), "cutoff", cutoff)

	// Persistence outlives cancellation so buffered rows are not lost.
	persistCtx := context.WithoutCancel(ctx)
	stored := 0
	writer := batch.NewWriter(s.batchCfg, func(ctx context.Context, records []repository.MessageRecord) error {
		n, err := s.repo.InsertMessages(ctx, records)
		if err != nil {
			return err
		}
		stored += n
		if skipped := len(records) - n; skipped > 0 {
			log.Debug("skipped already archived messages", "skipped", skipped)
		}
		return nil
	}, s.clock)

	acc := NewAccumulator(s.extractor)
	run := s.traversal.Start(ctx, channels, cutoff)
	for msg := range run.Messages {
		acc.Add(msg)
		_ = writer.Add(persistCtx, repository.NewMessageRecord(msg))
	}
	writes := writer.Close(persistCtx)
	report := run.Report()

	total, err := s.repo.CountMessages(persistCtx)
	if err != nil {
		log.Error("failed to count archived messages", "error", err)
	}

	res := &Result{
		ScanID:          scanID,
		Cutoff:          cutoff,
		Summary:         acc.Summary(),
		ChannelsScanned: report.ChannelsScanned,
		ChannelsSkipped: report.ChannelsSkipped,
		Pages:           report.Pages,
		Warnings:        report.Warnings,
		Writes:          writes,
		Stored:          stored,
		DatabaseTotal:   total,
		Interrupted:     report.Interrupted || ctx.Err() != nil,
		Elapsed:         s.clock.Since(started),
	}

	status := "ok"
	if res.Partial() {
		status = "partial"
	}
	metrics.ScansTotal.WithLabelValues(status).Inc()
	metrics.ScanMessagesTotal.Add(float64(res.Summary.MessageCount))
	metrics.ScanDuration.Observe(res.Elapsed.Seconds())
	log.Info("scan finished",
		"status", status,
		"messages", res.Summary.MessageCount,
		"unique_authors", res.Summary.UniqueAuthors(),
		"channels_scanned", res.ChannelsScanned,
		"channels_skipped", res.ChannelsSkipped,
		"warnings", len(res.Warnings),
		"pages", res.Pages,
		"flushes", writes.Flushes,
		"failed_batches", writes.FailedBatches,
		"stored", stored,
		"elapsed", res.Elapsed)
	return res, nil
}
