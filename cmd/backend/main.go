package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/wrapup/external/config"
	"github.com/foxseedlab/wrapup/external/discord"
	metricsserver "github.com/foxseedlab/wrapup/external/metrics"
	repositoryimpl "github.com/foxseedlab/wrapup/external/repository"
	webhookimpl "github.com/foxseedlab/wrapup/external/webhook"
	"github.com/foxseedlab/wrapup/internal/activity"
	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/bump"
	"github.com/foxseedlab/wrapup/internal/command"
	"github.com/foxseedlab/wrapup/internal/config"
	discordpkg "github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/foxseedlab/wrapup/internal/presence"
	"github.com/foxseedlab/wrapup/internal/retry"
	"github.com/foxseedlab/wrapup/internal/scan"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	shutdownTimeout       = 30 * time.Second
	batchRetryBackoff     = 200 * time.Millisecond
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "guild_id", cfg.DiscordGuildID)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, batch.Config{
		Threshold: cfg.BatchSize,
		Cooldown:  cfg.BatchCooldown,
		Retry: retry.Policy{
			MaxAttempts:    cfg.BatchMaxAttempts,
			InitialBackoff: batchRetryBackoff,
			Permanent:      repositoryimpl.IsPermanentError,
		},
	})
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	metricsserver.RegisterDI(injector)
	emoji.RegisterDI(injector)
	presence.RegisterDI(injector)
	bump.RegisterDI(injector)
	scan.RegisterDI(injector)
	activity.RegisterDI(injector)
	command.RegisterDI(injector)

	return injector
}

func mustInvoke[T any](injector do.Injector, what string) T {
	v, err := do.Invoke[T](injector)
	if err != nil {
		slog.Error("failed to resolve "+what, "error", err)
		os.Exit(1)
	}
	return v
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc := mustInvoke[discordpkg.Client](injector, "discord client")
	router := mustInvoke[*activity.Router](injector, "activity router")
	handler := mustInvoke[*command.Handler](injector, "command handler")
	metrics := mustInvoke[*metricsserver.Server](injector, "metrics server")

	// Handlers go in before Connect so the initial GuildCreate seeds presence.
	router.Register(dc)
	dc.RegisterSlashCommandHandler(handler.HandleSlashCommand)
	router.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	if err := dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, command.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID, "commands", command.CommandNames())

	if err := metrics.Start(); err != nil {
		slog.Error("metrics server failed to start", "error", err, "addr", cfg.MetricsAddr)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	shutdown(dc, router, handler, metrics)
}

func shutdown(dc discordpkg.Client, router *activity.Router, handler *command.Handler, metrics *metricsserver.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := handler.Shutdown(ctx); err != nil {
		slog.Error("command handler shutdown failed", "error", err)
	}
	if err := dc.Close(); err != nil {
		slog.Error("discord close failed", "error", err)
	}
	stats := router.Stop()
	slog.Info("live archive drained", "attempted", stats.Attempted, "failed_batches", stats.FailedBatches, "failed_rows", stats.FailedRows)
	if err := metrics.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}
}
