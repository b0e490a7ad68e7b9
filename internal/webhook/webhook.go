package webhook

import "context"

type ScanSummaryPayload struct {
	ScanID            string            `json:"scan_id"`
	GuildID           string            `json:"guild_id"`
	RequestedBy       string            `json:"requested_by"`
	Since             string            `json:"since"`
	Messages          int64             `json:"messages"`
	UniqueUsers       int               `json:"unique_users"`
	ChannelsScanned   int               `json:"channels_scanned"`
	ChannelsSkipped   int               `json:"channels_skipped"`
	MostActiveChannel string            `json:"most_active_channel"`
	TopEmoji          string            `json:"top_emoji"`
	TopEmojiCount     int64             `json:"top_emoji_count"`
	Activity          []ChannelActivity `json:"activity"`
	DatabaseTotal     int64             `json:"database_total"`
	Warnings          []ScanWarning     `json:"warnings"`
	Interrupted       bool              `json:"interrupted"`
	ElapsedSeconds    float64           `json:"elapsed_seconds"`
}

type ChannelActivity struct {
	Channel  string `json:"channel"`
	Messages int64  `json:"messages"`
}

type ScanWarning struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Error       string `json:"error"`
}

type Sender interface {
	SendScanSummary(ctx context.Context, payload ScanSummaryPayload) error
}
