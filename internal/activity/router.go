// Package activity archives live gateway events. Each concern has its own
// single-worker queue so events of one kind are handled in arrival order.
package activity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/bump"
	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/foxseedlab/wrapup/internal/metrics"
	"github.com/foxseedlab/wrapup/internal/presence"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/jonboulle/clockwork"
)

type Router struct {
	guildID   string
	repo      repository.Repository
	extractor *emoji.Extractor
	tracker   *presence.Tracker
	bumps     *bump.Detector
	writer    *batch.Writer[repository.MessageRecord]

	messages *boundedQueue
	deletes  *boundedQueue
	voice    *boundedQueue

	// submitMu guards stopped so no task is submitted to a stopped queue.
	submitMu sync.RWMutex
	stopped  bool

	records   chan repository.MessageRecord
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	stats     batch.Stats
}

// NewRouter wires the live listeners. Events from guilds other than guildID
// are ignored; an empty guildID accepts every guild.
func NewRouter(guildID string, repo repository.Repository, extractor *emoji.Extractor, tracker *presence.Tracker, bumps *bump.Detector, batchCfg batch.Config, clock clockwork.Clock) *Router {
	if extractor == nil {
		extractor = emoji.NewExtractor(nil)
	}
	if batchCfg.Name == "" {
		batchCfg.Name = "live_messages"
	}
	writer := batch.NewWriter(batchCfg, func(ctx context.Context, records []repository.MessageRecord) error {
		_, err := repo.InsertMessages(ctx, records)
		return err
	}, clock)
	return &Router{
		guildID:   guildID,
		repo:      repo,
		extractor: extractor,
		tracker:   tracker,
		bumps:     bumps,
		writer:    writer,
		messages:  newBoundedQueue(DefaultQueueLimit),
		deletes:   newBoundedQueue(DefaultQueueLimit),
		voice:     newBoundedQueue(DefaultQueueLimit),
		records:   make(chan repository.MessageRecord, max(batchCfg.Threshold, 1)),
		done:      make(chan struct{}),
	}
}

// Register subscribes the router to the gateway pushes it consumes.
func (r *Router) Register(client discord.Client) {
	client.RegisterMessageCreateHandler(r.HandleMessage)
	client.RegisterMessageDeleteHandler(r.HandleMessageDelete)
	client.RegisterVoiceStateUpdateHandler(r.HandleVoiceState)
	client.RegisterGuildReadyHandler(r.HandleGuildReady)
}

// Start launches the message archive writer. It runs until Stop.
func (r *Router) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.done)
			r.stats = r.writer.Run(context.WithoutCancel(ctx), r.records)
		}()
		slog.Info("activity router started", "guild_id", r.guildID)
	})
}

// Stop drains every queue, flushes buffered message records and returns
// the archive writer's totals.
func (r *Router) Stop() batch.Stats {
	r.stopOnce.Do(func() {
		r.Start(context.Background())
		r.submitMu.Lock()
		r.stopped = true
		r.submitMu.Unlock()
		r.messages.StopWait()
		r.deletes.StopWait()
		r.voice.StopWait()
		close(r.records)
		<-r.done
		slog.Info("activity router stopped",
			"messages_offered", r.stats.Offered,
			"flushes", r.stats.Flushes,
			"failed_batches", r.stats.FailedBatches)
	})
	return r.stats
}

func (r *Router) acceptGuild(guildID string) bool {
	return r.guildID == "" || guildID == r.guildID
}

func (r *Router) submit(queue *boundedQueue, task func()) {
	r.submitMu.RLock()
	defer r.submitMu.RUnlock()
	if r.stopped {
		slog.Debug("activity router stopped, dropping event")
		return
	}
	queue.Submit(task)
}

func (r *Router) HandleMessage(msg discord.Message) {
	if !r.acceptGuild(msg.GuildID) {
		return
	}
	r.submit(r.messages, func() {
		r.processMessage(context.Background(), msg)
	})
}

func (r *Router) HandleMessageDelete(ev discord.MessageDeleteEvent) {
	if !r.acceptGuild(ev.GuildID) {
		return
	}
	r.submit(r.deletes, func() {
		r.processDelete(context.Background(), ev)
	})
}

func (r *Router) HandleVoiceState(ev discord.VoiceStateEvent) {
	if !r.acceptGuild(ev.GuildID) {
		return
	}
	r.submit(r.voice, func() {
		r.tracker.Handle(context.Background(), ev)
	})
}

// HandleGuildReady seeds voice presence. It shares the voice queue so that
// seeding is ordered with later transitions.
func (r *Router) HandleGuildReady(ev discord.GuildReadyEvent) {
	if !r.acceptGuild(ev.GuildID) {
		return
	}
	r.submit(r.voice, func() {
		r.tracker.Seed(ev.Participants)
	})
}

// Bump notices come from bots, so they are checked before the bot filter.
func (r *Router) processMessage(ctx context.Context, msg discord.Message) {
	if r.bumps != nil && r.bumps.Handle(ctx, msg) {
		return
	}
	if msg.AuthorIsBot || msg.IsWebhook {
		return
	}

	select {
	case r.records <- repository.NewMessageRecord(msg):
	case <-r.done:
		slog.Warn("message archive closed; dropping record", "message_id", msg.ID)
	}

	tokens := r.extractor.Extract(msg.Content)
	if len(tokens) == 0 {
		return
	}
	usages := repository.NewEmojiUsages(msg, tokens, msg.Timestamp)
	if err := r.repo.InsertEmojiUsages(ctx, usages); err != nil {
		slog.Error("failed to save emoji usage", "error", err, "message_id", msg.ID, "emoji", len(usages))
		return
	}
	metrics.EmojiUsagesTotal.Add(float64(len(usages)))
}

func (r *Router) processDelete(ctx context.Context, ev discord.MessageDeleteEvent) {
	n, err := r.repo.DeleteEmojiUsagesByMessage(ctx, ev.MessageID)
	if err != nil {
		slog.Error("failed to delete emoji usage", "error", err, "message_id", ev.MessageID)
		return
	}
	if n > 0 {
		slog.Debug("deleted emoji usage of removed message", "message_id", ev.MessageID, "rows", n)
	}
}
