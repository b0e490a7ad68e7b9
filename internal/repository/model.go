package repository

import "time"

type MessageRecord struct {
	ID            int64
	AuthorID      int64
	ChannelID     int64
	Timestamp     time.Time
	WordCount     int
	CharCount     int
	HasAttachment bool
	IsReply       bool
	HourOfDay     int
}

type EmojiUsage struct {
	ID        int64
	MessageID int64
	Emoji     string
	UserID    int64
	Timestamp time.Time
}

type VoiceSession struct {
	ID        int64
	UserID    int64
	ChannelID int64
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

type Bump struct {
	ID        int64
	UserID    int64
	BumpTime  float64
	Timestamp time.Time
}

type EmojiCount struct {
	Emoji string
	Count int64
}
