package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	discordpkg "github.com/foxseedlab/wrapup/internal/discord"
)

const (
	// The bot must be able to see, read back and post in a channel for it
	// to be scanned.
	scanPermissions = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory | discordgo.PermissionSendMessages

	memberSearchLimit = 1000
)

type Client struct {
	token string

	mu        sync.Mutex
	session   *discordgo.Session
	botUserID string
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token:  token,
		closed: make(chan struct{}),
	}
}

// ensureSession builds the session on first use so handlers can be
// registered before the gateway connection opens.
func (c *Client) ensureSession() (*discordgo.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildVoiceStates,
	)
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	// Handlers run on the gateway reader so a full live queue pushes back
	// on event intake.
	s.SyncEvents = true
	c.session = s
	return s, nil
}

func (c *Client) mustSession() *discordgo.Session {
	s, err := c.ensureSession()
	if err != nil {
		panic(fmt.Sprintf("failed to create discord session: %v", err))
	}
	return s
}

func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := c.ensureSession()
	if err != nil {
		return err
	}
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	slog.Info("discord gateway opened", "bot_user_id", userID)
	return nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		s := c.session
		c.mu.Unlock()
		if s != nil {
			err = s.Close()
		}
	})
	return err
}

// Run blocks until Close is called.
func (c *Client) Run() error {
	<-c.closed
	return nil
}

func (c *Client) ListTextChannels(ctx context.Context, guildID string) ([]discordpkg.Channel, error) {
	s, err := c.ensureSession()
	if err != nil {
		return nil, err
	}
	channels, err := s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	botUserID, err := c.GetBotUserID()
	if err != nil {
		return nil, err
	}

	out := make([]discordpkg.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch == nil || ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, discordpkg.Channel{
			ID:      ch.ID,
			Name:    ch.Name,
			CanRead: c.canScan(ctx, s, botUserID, ch.ID),
		})
	}
	return out, nil
}

func (c *Client) canScan(ctx context.Context, s *discordgo.Session, userID, channelID string) bool {
	perms, err := s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = s.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	}
	if err != nil {
		slog.Warn("failed to resolve channel permissions; treating channel as unreadable", "error", err, "channel_id", channelID)
		return false
	}
	return perms&scanPermissions == scanPermissions
}

func (c *Client) FetchMessages(ctx context.Context, channelID, beforeID string, limit int) (discordpkg.MessagePage, error) {
	s, err := c.ensureSession()
	if err != nil {
		return discordpkg.MessagePage{}, err
	}
	msgs, err := s.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return discordpkg.MessagePage{}, fmt.Errorf("failed to fetch messages of channel %s: %w", channelID, err)
	}
	page := discordpkg.MessagePage{
		Messages: make([]discordpkg.Message, 0, len(msgs)),
		Fetched:  len(msgs),
	}
	for _, m := range msgs {
		if m != nil && m.ID != "" {
			page.OldestID = m.ID
		}
		msg, err := toMessage(m)
		if err != nil {
			slog.Warn("skipping malformed message", "error", err, "channel_id", channelID)
			continue
		}
		page.Messages = append(page.Messages, msg)
	}
	return page, nil
}

// FindMembersByDisplayName matches name against nickname, global name and
// username in that order, ignoring case. Cached members are combined with a
// REST prefix search because the cache may be partial.
func (c *Client) FindMembersByDisplayName(ctx context.Context, guildID, name string) ([]discordpkg.Member, error) {
	s, err := c.ensureSession()
	if err != nil {
		return nil, err
	}
	candidates := make(map[string]*discordgo.Member)
	if guild, err := s.State.Guild(guildID); err == nil && guild != nil {
		for _, m := range guild.Members {
			if m != nil && m.User != nil {
				candidates[m.User.ID] = m
			}
		}
	}
	found, err := s.GuildMembersSearch(guildID, name, memberSearchLimit, discordgo.WithContext(ctx))
	if err != nil && len(candidates) == 0 {
		return nil, err
	}
	for _, m := range found {
		if m != nil && m.User != nil {
			candidates[m.User.ID] = m
		}
	}

	var out []discordpkg.Member
	for _, m := range candidates {
		display := effectiveName(m)
		if !strings.EqualFold(display, name) {
			continue
		}
		id, err := parseID(m.User.ID)
		if err != nil {
			continue
		}
		out = append(out, discordpkg.Member{UserID: id, DisplayName: display, IsBot: m.User.Bot})
	}
	return out, nil
}

func effectiveName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func (c *Client) RegisterMessageCreateHandler(handler func(discordpkg.Message)) {
	c.mustSession().AddHandler(func(_ *discordgo.Session, mc *discordgo.MessageCreate) {
		if mc == nil || mc.Message == nil || mc.GuildID == "" {
			return
		}
		msg, err := toMessage(mc.Message)
		if err != nil {
			slog.Warn("ignoring malformed message event", "error", err, "channel_id", mc.ChannelID)
			return
		}
		handler(msg)
	})
}

func (c *Client) RegisterMessageDeleteHandler(handler func(discordpkg.MessageDeleteEvent)) {
	c.mustSession().AddHandler(func(_ *discordgo.Session, md *discordgo.MessageDelete) {
		if md == nil || md.Message == nil {
			return
		}
		id, err := parseID(md.ID)
		if err != nil {
			slog.Warn("ignoring malformed message delete event", "error", err)
			return
		}
		handler(discordpkg.MessageDeleteEvent{GuildID: md.GuildID, ChannelID: md.ChannelID, MessageID: id})
	})
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.mustSession().AddHandler(func(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil || vs.VoiceState == nil {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		afterChannelID := vs.ChannelID
		if beforeChannelID == afterChannelID {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		userID, err := parseID(vs.UserID)
		if err != nil {
			slog.Warn("ignoring malformed voice state event", "error", err)
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:         vs.GuildID,
			UserID:          userID,
			UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannelID: beforeChannelID,
			AfterChannelID:  afterChannelID,
		})
	})
}

// RegisterGuildReadyHandler fires when a guild becomes available, carrying
// everyone currently in a voice channel.
func (c *Client) RegisterGuildReadyHandler(handler func(discordpkg.GuildReadyEvent)) {
	c.mustSession().AddHandler(func(_ *discordgo.Session, gc *discordgo.GuildCreate) {
		if gc == nil || gc.Guild == nil || gc.Unavailable {
			return
		}
		participants, err := c.ListVoiceParticipants(gc.ID)
		if err != nil {
			slog.Error("failed to list voice participants", "error", err, "guild_id", gc.ID)
		}
		handler(discordpkg.GuildReadyEvent{GuildID: gc.ID, Participants: participants})
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.mustSession().AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		var user *discordgo.User
		if ic.Member != nil && ic.Member.User != nil {
			user = ic.Member.User
		}
		if user == nil {
			user = ic.User
		}
		if user == nil {
			return
		}
		userID, err := parseID(user.ID)
		if err != nil {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt != nil && opt.Type == discordgo.ApplicationCommandOptionString {
				options[opt.Name] = opt.StringValue()
			}
		}
		handler(discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			UserName:    user.Username,
			Options:     options,
			Defer: func() error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
				})
			},
			EditReply: func(content string) error {
				_, err := s.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{Content: &content})
				return err
			},
		})
	})
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return errors.New("discord application id is not available")
	}
	s := c.mustSession()
	existing, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(s, appID, guildID, def, existingByName); err != nil {
			return fmt.Errorf("failed to upsert command %s: %w", def.Name, err)
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(s *discordgo.Session, appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := toApplicationCommand(def)
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := s.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if commandUpToDate(cmd, payload) {
		return nil
	}
	_, err := s.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func toApplicationCommand(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	for _, opt := range def.Options {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	return cmd
}

func commandUpToDate(existing, want *discordgo.ApplicationCommand) bool {
	if existing.Description != want.Description || len(existing.Options) != len(want.Options) {
		return false
	}
	for i, opt := range want.Options {
		got := existing.Options[i]
		if got == nil || got.Name != opt.Name || got.Description != opt.Description || got.Required != opt.Required || got.Type != opt.Type {
			return false
		}
	}
	return true
}

func (c *Client) ListVoiceParticipants(guildID string) ([]discordpkg.VoiceParticipant, error) {
	s, err := c.ensureSession()
	if err != nil {
		return nil, err
	}
	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	participants := make([]discordpkg.VoiceParticipant, 0, len(guild.VoiceStates))
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID == "" || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		userID, err := parseID(state.UserID)
		if err != nil {
			continue
		}
		participants = append(participants, discordpkg.VoiceParticipant{
			UserID:    userID,
			ChannelID: state.ChannelID,
			IsBot:     c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return participants, nil
}

func (c *Client) GetBotUserID() (string, error) {
	c.mu.Lock()
	cached := c.botUserID
	s := c.session
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if s == nil {
		return "", errors.New("discord session is not initialized")
	}
	var id string
	if s.State != nil && s.State.User != nil && s.State.User.ID != "" {
		id = s.State.User.ID
	} else {
		u, err := s.User("@me")
		if err != nil {
			return "", err
		}
		id = u.ID
	}
	c.mu.Lock()
	c.botUserID = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	s := c.mustSession()
	if s.State == nil {
		return false, false
	}
	if s.State.User != nil && s.State.User.ID == userID {
		return true, true
	}
	member, err := s.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.mustSession().User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) applicationID() string {
	s := c.mustSession()
	if s.State == nil {
		return ""
	}
	if s.State.Application != nil && s.State.Application.ID != "" {
		return s.State.Application.ID
	}
	if s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}

func toMessage(m *discordgo.Message) (discordpkg.Message, error) {
	if m == nil || m.Author == nil {
		return discordpkg.Message{}, errors.New("message has no author")
	}
	id, err := parseID(m.ID)
	if err != nil {
		return discordpkg.Message{}, err
	}
	authorID, err := parseID(m.Author.ID)
	if err != nil {
		return discordpkg.Message{}, err
	}
	channelID, err := parseID(m.ChannelID)
	if err != nil {
		return discordpkg.Message{}, err
	}
	return discordpkg.Message{
		ID:            id,
		GuildID:       m.GuildID,
		AuthorID:      authorID,
		AuthorIsBot:   m.Author.Bot,
		IsWebhook:     m.WebhookID != "",
		ChannelID:     channelID,
		Timestamp:     m.Timestamp,
		Content:       m.Content,
		HasAttachment: len(m.Attachments) > 0,
		IsReply:       m.MessageReference != nil,
	}, nil
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", raw, err)
	}
	return id.Int64(), nil
}
