package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                string
	DatabaseURL        string
	DiscordToken       string
	DiscordGuildID     string
	ScanConcurrency    int
	ScanPagesPerSecond float64
	ScanQueueSize      int
	ScanTimeout        time.Duration
	BatchSize          int
	BatchCooldown      time.Duration
	BatchMaxAttempts   int
	LiveFlushInterval  time.Duration
	EmojiDatasetPath   string
	ScanWebhookURL     string
	MetricsAddr        string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	for _, p := range c.positiveIntChecks() {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.ScanPagesPerSecond <= 0 {
		return fmt.Errorf("SCAN_PAGES_PER_SECOND must be positive, got %v", c.ScanPagesPerSecond)
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("SCAN_TIMEOUT must be positive, got %s", c.ScanTimeout)
	}
	if c.BatchCooldown < 0 {
		return fmt.Errorf("BATCH_COOLDOWN must not be negative, got %s", c.BatchCooldown)
	}
	if c.LiveFlushInterval <= 0 {
		return fmt.Errorf("LIVE_FLUSH_INTERVAL must be positive, got %s", c.LiveFlushInterval)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveIntChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "SCAN_CONCURRENCY", value: c.ScanConcurrency},
		{name: "SCAN_QUEUE_SIZE", value: c.ScanQueueSize},
		{name: "BATCH_SIZE", value: c.BatchSize},
		{name: "BATCH_MAX_ATTEMPTS", value: c.BatchMaxAttempts},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
