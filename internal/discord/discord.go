package discord

import (
	"context"
	"time"
)

// Message is one chat event as seen by the pipeline, either fetched from
// channel history or pushed by the gateway.
type Message struct {
	ID            int64
	GuildID       string
	AuthorID      int64
	AuthorIsBot   bool
	IsWebhook     bool
	ChannelID     int64
	ChannelName   string
	Timestamp     time.Time
	Content       string
	HasAttachment bool
	IsReply       bool
}

type Channel struct {
	ID      string
	Name    string
	CanRead bool
}

type Member struct {
	UserID      int64
	DisplayName string
	IsBot       bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type SlashCommandOption struct {
	Name        string
	Description string
	Required    bool
}

type SlashCommandEvent struct {
	GuildID     string
	ChannelID   string
	CommandName string
	UserID      int64
	UserName    string
	Options     map[string]string
	Defer       func() error
	EditReply   func(content string) error
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          int64
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type MessageDeleteEvent struct {
	GuildID   string
	ChannelID string
	MessageID int64
}

type VoiceParticipant struct {
	UserID    int64
	ChannelID string
	IsBot     bool
}

type GuildReadyEvent struct {
	GuildID      string
	Participants []VoiceParticipant
}

// MessagePageSize is the largest page the history endpoint returns.
const MessagePageSize = 100

// MessagePage is one page of channel history. Fetched counts every message
// the platform returned, including ones that could not be converted, and
// OldestID is the raw id of the last of them. Paging goes on from OldestID
// while Fetched reaches the requested limit.
type MessagePage struct {
	Messages []Message
	Fetched  int
	OldestID string
}

type History interface {
	ListTextChannels(ctx context.Context, guildID string) ([]Channel, error)
	// FetchMessages returns up to limit messages older than beforeID, newest
	// first. An empty beforeID starts at the most recent message.
	FetchMessages(ctx context.Context, channelID, beforeID string, limit int) (MessagePage, error)
}

type MemberDirectory interface {
	FindMembersByDisplayName(ctx context.Context, guildID, name string) ([]Member, error)
}

type Client interface {
	History
	MemberDirectory
	Connect(ctx context.Context) error
	Close() error
	RegisterMessageCreateHandler(handler func(Message))
	RegisterMessageDeleteHandler(handler func(MessageDeleteEvent))
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterGuildReadyHandler(handler func(GuildReadyEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	ListVoiceParticipants(guildID string) ([]VoiceParticipant, error)
	GetBotUserID() (string, error)
	Run() error
}
