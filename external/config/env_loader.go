package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/wrapup/internal/config"
)

type envConfig struct {
	Env                string        `env:"ENV" envDefault:"production"`
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	DiscordToken       string        `env:"DISCORD_TOKEN,required"`
	DiscordGuildID     string        `env:"DISCORD_GUILD_ID,required"`
	ScanConcurrency    int           `env:"SCAN_CONCURRENCY" envDefault:"6"`
	ScanPagesPerSecond float64       `env:"SCAN_PAGES_PER_SECOND" envDefault:"20"`
	ScanQueueSize      int           `env:"SCAN_QUEUE_SIZE" envDefault:"1000"`
	ScanTimeout        time.Duration `env:"SCAN_TIMEOUT" envDefault:"30m"`
	BatchSize          int           `env:"BATCH_SIZE" envDefault:"1000"`
	BatchCooldown      time.Duration `env:"BATCH_COOLDOWN" envDefault:"100ms"`
	BatchMaxAttempts   int           `env:"BATCH_MAX_ATTEMPTS" envDefault:"3"`
	LiveFlushInterval  time.Duration `env:"LIVE_FLUSH_INTERVAL" envDefault:"5s"`
	EmojiDatasetPath   string        `env:"EMOJI_DATASET_PATH"`
	ScanWebhookURL     string        `env:"SCAN_WEBHOOK_URL"`
	MetricsAddr        string        `env:"METRICS_ADDR"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                raw.Env,
		DatabaseURL:        raw.DatabaseURL,
		DiscordToken:       raw.DiscordToken,
		DiscordGuildID:     raw.DiscordGuildID,
		ScanConcurrency:    raw.ScanConcurrency,
		ScanPagesPerSecond: raw.ScanPagesPerSecond,
		ScanQueueSize:      raw.ScanQueueSize,
		ScanTimeout:        raw.ScanTimeout,
		BatchSize:          raw.BatchSize,
		BatchCooldown:      raw.BatchCooldown,
		BatchMaxAttempts:   raw.BatchMaxAttempts,
		LiveFlushInterval:  raw.LiveFlushInterval,
		EmojiDatasetPath:   raw.EmojiDatasetPath,
		ScanWebhookURL:     raw.ScanWebhookURL,
		MetricsAddr:        raw.MetricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
