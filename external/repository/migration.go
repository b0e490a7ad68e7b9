package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		message_id BIGINT PRIMARY KEY,
		author_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		word_count INTEGER NOT NULL,
		char_count INTEGER NOT NULL,
		has_attachment BOOLEAN NOT NULL,
		is_reply BOOLEAN NOT NULL DEFAULT FALSE,
		hour_of_day SMALLINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_author ON messages (author_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp)`,
	`CREATE TABLE IF NOT EXISTS emoji_usage (
		id BIGSERIAL PRIMARY KEY,
		message_id BIGINT NOT NULL,
		emoji_id VARCHAR(128) NOT NULL,
		user_id BIGINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emoji_usage_message ON emoji_usage (message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emoji_usage_user ON emoji_usage (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emoji_usage_timestamp ON emoji_usage (timestamp)`,
	`CREATE TABLE IF NOT EXISTS voice_sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_voice_sessions_user ON voice_sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS bumps (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		bump_time DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bumps_user ON bumps (user_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
