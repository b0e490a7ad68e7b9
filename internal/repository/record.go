package repository

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/foxseedlab/wrapup/internal/discord"
)

var mediaURLPattern = regexp.MustCompile(`(?i)https?://\S+\.(jpg|jpeg|png|gif|webp|mp4|mov|webm)`)

// NewMessageRecord projects a message onto the stored metadata. Content
// itself is never persisted.
func NewMessageRecord(m discord.Message) MessageRecord {
	return MessageRecord{
		ID:            m.ID,
		AuthorID:      m.AuthorID,
		ChannelID:     m.ChannelID,
		Timestamp:     m.Timestamp,
		WordCount:     len(strings.Fields(m.Content)),
		CharCount:     utf8.RuneCountInString(m.Content),
		HasAttachment: m.HasAttachment || mediaURLPattern.MatchString(m.Content),
		IsReply:       m.IsReply,
		HourOfDay:     m.Timestamp.UTC().Hour(),
	}
}

// NewEmojiUsages returns one row per emoji occurrence in the message.
func NewEmojiUsages(m discord.Message, tokens []string, at time.Time) []EmojiUsage {
	usages := make([]EmojiUsage, 0, len(tokens))
	for _, token := range tokens {
		usages = append(usages, EmojiUsage{
			MessageID: m.ID,
			Emoji:     token,
			UserID:    m.AuthorID,
			Timestamp: at,
		})
	}
	return usages
}
