package repository

import "context"

type MessageRepository interface {
	// InsertMessages stores records, skipping ids that already exist, and
	// reports how many rows were actually written.
	InsertMessages(ctx context.Context, records []MessageRecord) (int, error)
	CountMessages(ctx context.Context) (int64, error)
}

type EmojiRepository interface {
	InsertEmojiUsages(ctx context.Context, usages []EmojiUsage) error
	DeleteEmojiUsagesByMessage(ctx context.Context, messageID int64) (int64, error)
	CountEmojiUsagesByUser(ctx context.Context, userID int64) (int64, error)
	TopEmojisByUser(ctx context.Context, userID int64, limit int) ([]EmojiCount, error)
}

type VoiceSessionRepository interface {
	InsertVoiceSession(ctx context.Context, session VoiceSession) error
}

type BumpRepository interface {
	InsertBump(ctx context.Context, bump Bump) error
}

type Repository interface {
	MessageRepository
	EmojiRepository
	VoiceSessionRepository
	BumpRepository
}
