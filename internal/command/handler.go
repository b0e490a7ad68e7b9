// Package command answers the guild's slash commands.
package command

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/foxseedlab/wrapup/internal/scan"
	"github.com/foxseedlab/wrapup/internal/webhook"
)

const (
	commandScan   = "scan"
	commandWrapup = "wrapup"
	optionDate    = "date"

	topEmojiLimit  = 3
	webhookTimeout = 30 * time.Second
)

// Scanner is the scan operation the /scan command drives.
type Scanner interface {
	Scan(ctx context.Context, guildID string, cutoff time.Time) (*scan.Result, error)
}

type Handler struct {
	guildID     string
	scanTimeout time.Duration
	scanner     Scanner
	emoji       repository.EmojiRepository
	webhook     webhook.Sender

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	scanning bool
}

func NewHandler(guildID string, scanTimeout time.Duration, scanner Scanner, emoji repository.EmojiRepository, wh webhook.Sender) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		guildID:     guildID,
		scanTimeout: scanTimeout,
		scanner:     scanner,
		emoji:       emoji,
		webhook:     wh,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        commandScan,
			Description: slashCommandScanDescription,
			Options: []discord.SlashCommandOption{
				{Name: optionDate, Description: slashCommandScanDateDescription, Required: true},
			},
		},
		{Name: commandWrapup, Description: slashCommandWrapupDescription},
	}
}

func CommandNames() []string {
	defs := SlashCommandDefinitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func (h *Handler) HandleSlashCommand(ev discord.SlashCommandEvent) {
	slog.Info("slash command received", "command", ev.CommandName, "guild_id", ev.GuildID, "user_id", ev.UserID)
	if ev.GuildID != h.guildID {
		h.reply(ev, messageWrongGuild)
		return
	}
	switch ev.CommandName {
	case commandScan:
		h.handleScan(ev)
	case commandWrapup:
		h.handleWrapup(ev)
	default:
		h.reply(ev, messageUnknownCommand)
	}
}

// Shutdown cancels running scans and waits for them to report, or for ctx
// to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) handleScan(ev discord.SlashCommandEvent) {
	since := ev.Options[optionDate]
	cutoff, err := scan.ParseCutoff(since)
	if err != nil {
		slog.Info("rejected scan request", "error", err, "user_id", ev.UserID)
		h.reply(ev, messageInvalidDate)
		return
	}
	if !h.beginScan() {
		h.reply(ev, messageScanRunning)
		return
	}
	if err := ev.Defer(); err != nil {
		h.endScan()
		slog.Error("failed to defer scan reply", "error", err)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.endScan()
		h.runScan(ev, since, cutoff)
	}()
}

func (h *Handler) runScan(ev discord.SlashCommandEvent, since string, cutoff time.Time) {
	ctx, cancel := context.WithTimeout(h.ctx, h.scanTimeout)
	defer cancel()

	res, err := h.scanner.Scan(ctx, ev.GuildID, cutoff)
	if err != nil {
		slog.Error("scan failed", "error", err, "guild_id", ev.GuildID, "cutoff", cutoff)
		h.editReply(ev, messageScanFailed)
		return
	}
	h.editReply(ev, scanReply(res, since))

	whCtx, whCancel := context.WithTimeout(context.WithoutCancel(ctx), webhookTimeout)
	defer whCancel()
	if err := h.webhook.SendScanSummary(whCtx, buildScanSummaryPayload(ev, since, res)); err != nil {
		slog.Error("failed to send scan summary webhook", "error", err, "scan_id", res.ScanID)
	}
}

func (h *Handler) handleWrapup(ev discord.SlashCommandEvent) {
	if err := ev.Defer(); err != nil {
		slog.Error("failed to defer wrapup reply", "error", err)
		return
	}
	ctx := h.ctx
	total, err := h.emoji.CountEmojiUsagesByUser(ctx, ev.UserID)
	if err != nil {
		slog.Error("failed to count emoji usage", "error", err, "user_id", ev.UserID)
		h.editReply(ev, messageWrapupFailed)
		return
	}
	var top []repository.EmojiCount
	if total > 0 {
		top, err = h.emoji.TopEmojisByUser(ctx, ev.UserID, topEmojiLimit)
		if err != nil {
			slog.Error("failed to load top emojis", "error", err, "user_id", ev.UserID)
			h.editReply(ev, messageWrapupFailed)
			return
		}
	}
	h.editReply(ev, wrapupReply(ev.UserName, total, top))
}

func (h *Handler) beginScan() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scanning {
		return false
	}
	h.scanning = true
	return true
}

func (h *Handler) endScan() {
	h.mu.Lock()
	h.scanning = false
	h.mu.Unlock()
}

func (h *Handler) reply(ev discord.SlashCommandEvent, content string) {
	if err := ev.Defer(); err != nil {
		slog.Error("failed to defer reply", "error", err, "command", ev.CommandName)
		return
	}
	h.editReply(ev, content)
}

func (h *Handler) editReply(ev discord.SlashCommandEvent, content string) {
	if err := ev.EditReply(content); err != nil {
		slog.Error("failed to edit reply", "error", err, "command", ev.CommandName)
	}
}

func buildScanSummaryPayload(ev discord.SlashCommandEvent, since string, res *scan.Result) webhook.ScanSummaryPayload {
	s := res.Summary
	topEmoji, topEmojiCount := s.TopEmoji()
	activity := make([]webhook.ChannelActivity, 0, s.SourcesSeen())
	for _, c := range s.ActivityBySource() {
		activity = append(activity, webhook.ChannelActivity{Channel: c.Key, Messages: c.Count})
	}
	warnings := make([]webhook.ScanWarning, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, webhook.ScanWarning{ChannelID: w.ChannelID, ChannelName: w.ChannelName, Error: w.Err.Error()})
	}
	return webhook.ScanSummaryPayload{
		ScanID:            res.ScanID,
		GuildID:           ev.GuildID,
		RequestedBy:       ev.UserName,
		Since:             since,
		Messages:          s.MessageCount,
		UniqueUsers:       s.UniqueAuthors(),
		ChannelsScanned:   res.ChannelsScanned,
		ChannelsSkipped:   res.ChannelsSkipped,
		MostActiveChannel: s.TopSource(),
		TopEmoji:          topEmoji,
		TopEmojiCount:     topEmojiCount,
		Activity:          activity,
		DatabaseTotal:     res.DatabaseTotal,
		Warnings:          warnings,
		Interrupted:       res.Interrupted,
		ElapsedSeconds:    res.Elapsed.Seconds(),
	}
}
