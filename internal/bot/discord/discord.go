// Package discord implements the bot Gateway on Discord's WebSocket
// gateway and REST API.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mrno/scrimbot/internal/bot"
	"github.com/mrno/scrimbot/internal/sequence"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.UserChannelCreate(recipientID, options...)
}
func (r *realSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return r.s.MessageReactionAdd(channelID, messageID, emojiID, options...)
}
func (r *realSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	return r.s.MessageReactionRemove(channelID, messageID, emojiID, userID, options...)
}
func (r *realSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessage(channelID, messageID, options...)
}
func (r *realSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return r.s.ChannelMessages(channelID, limit, beforeID, afterID, aroundID, options...)
}
func (r *realSession) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return r.s.GuildChannels(guildID, options...)
}
func (r *realSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.GuildChannelCreateComplex(guildID, data, options...)
}
func (r *realSession) ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.ChannelDelete(channelID, options...)
}
func (r *realSession) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error {
	return r.s.ChannelPermissionSet(channelID, targetID, targetType, allow, deny, options...)
}
func (r *realSession) ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelPermissionDelete(channelID, targetID, options...)
}
func (r *realSession) UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error) {
	return r.s.UserChannelPermissions(userID, channelID, fetchOptions...)
}

// Gateway implements bot.Gateway over the Discord Gateway WebSocket.
type Gateway struct {
	sess      session
	botToken  string
	guildID   string
	botUserID string

	mu             sync.Mutex
	connected      bool
	closed         bool
	done           chan struct{}
	inbound        chan bot.Event
	removeHandlers []func()
	baseBackoff    time.Duration
	maxBackoff     time.Duration
}

// Opts holds parameters for creating a Discord Gateway.
type Opts struct {
	BotToken string // Discord bot token
	GuildID  string // guild the bot operates in
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Gateway.
func New(opts Opts) (*Gateway, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.GuildID == "" {
		return nil, fmt.Errorf("discord: guild id is required")
	}
	g := &Gateway{
		botToken:    opts.BotToken,
		guildID:     opts.GuildID,
		done:        make(chan struct{}),
		inbound:     make(chan bot.Event, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		g.sess = opts.Session
	}
	return g, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("discord: gateway already closed")
	}
	if g.connected {
		return nil
	}

	if g.sess == nil {
		dg, err := discordgo.New("Bot " + g.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsGuildMessageReactions |
			discordgo.IntentsDirectMessageReactions |
			discordgo.IntentsMessageContent
		g.sess = &realSession{s: dg}
	}

	g.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.mu.Lock()
		g.botUserID = r.User.ID
		g.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	g.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	if err := g.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	g.connected = true
	return nil
}

// Listen registers the message and reaction handlers and returns the
// inbound event channel. Must be called after Connect.
func (g *Gateway) Listen(ctx context.Context) (<-chan bot.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return nil, fmt.Errorf("discord: not connected")
	}

	removeMsg := g.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		g.handleMessage(m)
	})
	removeReact := g.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		g.handleReaction(r)
	})
	g.removeHandlers = append(g.removeHandlers, removeMsg, removeReact)

	return g.inbound, nil
}

// handleMessage converts a Discord message event to a bot.Event, dropping
// the bot's own and other bots' messages.
func (g *Gateway) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	g.mu.Lock()
	botID := g.botUserID
	closed := g.closed
	g.mu.Unlock()
	if closed || m.Author.ID == botID {
		return
	}

	// Close may race this send; never write to inbound once done is closed.
	select {
	case g.inbound <- bot.Event{
		Type:      bot.EventMessage,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
		DM:        m.GuildID == "",
	}:
	case <-g.done:
	}
}

// handleReaction converts a reaction-add event to a bot.Event. Reaction
// events carry no username unless the member payload is present.
func (g *Gateway) handleReaction(r *discordgo.MessageReactionAdd) {
	g.mu.Lock()
	botID := g.botUserID
	closed := g.closed
	g.mu.Unlock()
	if closed || r.UserID == botID {
		return
	}

	userName := ""
	if r.Member != nil && r.Member.User != nil {
		userName = r.Member.User.Username
	}

	select {
	case g.inbound <- bot.Event{
		Type:      bot.EventReaction,
		UserID:    r.UserID,
		UserName:  userName,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		Emoji:     r.Emoji.Name,
		DM:        r.GuildID == "",
	}:
	case <-g.done:
	}
}

// buildMessageSend translates an Outbound into a Discord MessageSend.
func buildMessageSend(msg bot.Outbound) *discordgo.MessageSend {
	data := &discordgo.MessageSend{Content: msg.Text}
	if msg.Embed != nil {
		embed := &discordgo.MessageEmbed{
			Title:       msg.Embed.Title,
			Description: msg.Embed.Description,
			Color:       msg.Embed.Color,
		}
		for _, f := range msg.Embed.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		data.Embeds = append(data.Embeds, embed)
	}
	return data
}

// SendChannel posts a message to a channel and returns its message ID.
func (g *Gateway) SendChannel(ctx context.Context, channelID string, msg bot.Outbound) (string, error) {
	var sent *discordgo.Message
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		sent, apiErr = g.sess.ChannelMessageSendComplex(channelID, buildMessageSend(msg))
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

// SendDM opens (or reuses) the user's DM channel and posts the message.
func (g *Gateway) SendDM(ctx context.Context, userID string, msg bot.Outbound) (string, string, error) {
	var ch *discordgo.Channel
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = g.sess.UserChannelCreate(userID)
		return apiErr
	})
	if err != nil {
		return "", "", fmt.Errorf("discord: open dm with %s: %w", userID, err)
	}
	msgID, err := g.SendChannel(ctx, ch.ID, msg)
	if err != nil {
		return "", "", err
	}
	return msgID, ch.ID, nil
}

// AddReaction attaches the bot's own reaction to a message.
func (g *Gateway) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	err := g.retryOnRateLimit(ctx, func() error {
		return g.sess.MessageReactionAdd(channelID, messageID, emoji)
	})
	if err != nil {
		return fmt.Errorf("discord: add reaction %s: %w", emoji, err)
	}
	return nil
}

// RemoveReaction removes a user's reaction from a message.
func (g *Gateway) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	err := g.retryOnRateLimit(ctx, func() error {
		return g.sess.MessageReactionRemove(channelID, messageID, emoji, userID)
	})
	if err != nil {
		return fmt.Errorf("discord: remove reaction %s: %w", emoji, err)
	}
	return nil
}

// MessageReactions returns the reaction summary of a message.
func (g *Gateway) MessageReactions(ctx context.Context, channelID, messageID string) ([]sequence.Reaction, error) {
	var msg *discordgo.Message
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msg, apiErr = g.sess.ChannelMessage(channelID, messageID)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("discord: message %s: %w", messageID, err)
	}
	var out []sequence.Reaction
	for _, r := range msg.Reactions {
		out = append(out, sequence.Reaction{
			Emoji: r.Emoji.Name,
			Count: r.Count,
			Me:    r.Me,
		})
	}
	return out, nil
}

// LatestMessageID returns the most recent message in a channel, or ""
// for an empty channel.
func (g *Gateway) LatestMessageID(ctx context.Context, channelID string) (string, error) {
	var msgs []*discordgo.Message
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msgs, apiErr = g.sess.ChannelMessages(channelID, 1, "", "", "")
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: latest message in %s: %w", channelID, err)
	}
	if len(msgs) == 0 {
		return "", nil
	}
	return msgs[0].ID, nil
}

// CreateGameChannel creates a guild text channel under the named category,
// hidden from @everyone. Read access is granted per player afterwards.
func (g *Gateway) CreateGameChannel(ctx context.Context, name, category string) (string, error) {
	parentID := ""
	var channels []*discordgo.Channel
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		channels, apiErr = g.sess.GuildChannels(g.guildID)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(ch.Name, category) {
			parentID = ch.ID
			break
		}
	}
	if parentID == "" {
		log.Printf("discord: category %q not found, creating %q at guild root", category, name)
	}

	data := discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: parentID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{{
			// The @everyone role shares the guild's ID.
			ID:   g.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		}},
	}
	var created *discordgo.Channel
	err = g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		created, apiErr = g.sess.GuildChannelCreateComplex(g.guildID, data)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: create channel %q: %w", name, err)
	}
	return created.ID, nil
}

// DeleteChannel removes a guild channel.
func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	err := g.retryOnRateLimit(ctx, func() error {
		_, apiErr := g.sess.ChannelDelete(channelID)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, err)
	}
	return nil
}

// SetChannelRead grants or revokes a user's view permission on a channel.
func (g *Gateway) SetChannelRead(ctx context.Context, channelID, userID string, allow bool) error {
	err := g.retryOnRateLimit(ctx, func() error {
		if allow {
			return g.sess.ChannelPermissionSet(channelID, userID,
				discordgo.PermissionOverwriteTypeMember, discordgo.PermissionViewChannel, 0)
		}
		return g.sess.ChannelPermissionDelete(channelID, userID)
	})
	if err != nil {
		return fmt.Errorf("discord: set read on %s for %s: %w", channelID, userID, err)
	}
	return nil
}

// IsAdmin reports whether the user holds the administrator permission in
// the channel.
func (g *Gateway) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	var perms int64
	err := g.retryOnRateLimit(ctx, func() error {
		var apiErr error
		perms, apiErr = g.sess.UserChannelPermissions(userID, channelID)
		return apiErr
	})
	if err != nil {
		return false, fmt.Errorf("discord: permissions for %s in %s: %w", userID, channelID, err)
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (g *Gateway) BotUserID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.botUserID
}

// SetBotUserID sets the bot user ID (used for self-event filtering).
func (g *Gateway) SetBotUserID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.botUserID = id
}

// Close gracefully shuts down the gateway connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.connected = false
	for _, remove := range g.removeHandlers {
		remove()
	}
	// Signal in-flight handlers instead of closing inbound under them.
	close(g.done)
	if g.sess != nil {
		return g.sess.Close()
	}
	return nil
}

// retryOnRateLimit calls fn and retries with exponential backoff on
// Discord rate limit errors. It respects context cancellation.
func (g *Gateway) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * g.baseBackoff
		if wait > g.maxBackoff {
			wait = g.maxBackoff
		}
		log.Printf("discord: rate limited (attempt %d/%d) — retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
