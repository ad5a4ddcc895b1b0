// Package bot wires Discord events to the conversation engine, the
// command surface, and the lobby model.
package bot

import (
	"context"

	"github.com/mrno/scrimbot/internal/sequence"
)

// EventType distinguishes the two inbound event kinds the bot consumes.
type EventType int

const (
	// EventMessage is a text message (guild channel or DM).
	EventMessage EventType = iota
	// EventReaction is an emoji reaction added to a message.
	EventReaction
)

// Event is a single inbound platform event. Bot self-events are filtered
// by the gateway before they reach this type.
type Event struct {
	Type      EventType
	UserID    string
	UserName  string
	ChannelID string
	MessageID string
	Content   string // message events
	Emoji     string // reaction events
	DM        bool   // message arrived in a direct-message channel
}

// EmbedField is a key-value pair displayed inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message body.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
}

// Outbound is a message to deliver, either plain text or an embed.
type Outbound struct {
	Text  string
	Embed *Embed
}

// Gateway is the chat-platform boundary. The discord subpackage provides
// the production implementation; tests use MockGateway. Every method that
// performs I/O takes a context and returns an explicit error.
type Gateway interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error

	// Listen returns the inbound event channel. The channel is closed
	// when the gateway shuts down. Must be called after Connect.
	Listen(ctx context.Context) (<-chan Event, error)

	// SendChannel posts a message to a channel and returns its message ID.
	SendChannel(ctx context.Context, channelID string, msg Outbound) (string, error)

	// SendDM posts a direct message to a user, returning the message ID
	// and the DM channel ID (needed to seed reactions on the prompt).
	SendDM(ctx context.Context, userID string, msg Outbound) (messageID, channelID string, err error)

	// AddReaction attaches the bot's own reaction to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// RemoveReaction removes a user's reaction from a message.
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error

	// MessageReactions returns the current reaction summary of a message.
	MessageReactions(ctx context.Context, channelID, messageID string) ([]sequence.Reaction, error)

	// LatestMessageID returns the most recent message in a channel.
	// Satisfies sequence.History.
	LatestMessageID(ctx context.Context, channelID string) (string, error)

	// CreateGameChannel creates a guild text channel under the named
	// category and returns its ID.
	CreateGameChannel(ctx context.Context, name, category string) (string, error)

	// DeleteChannel removes a guild channel.
	DeleteChannel(ctx context.Context, channelID string) error

	// SetChannelRead grants or revokes a user's read access to a channel.
	SetChannelRead(ctx context.Context, channelID, userID string, allow bool) error

	// IsAdmin reports whether the user has administrator rights in the
	// channel (permission bit or an "admin" role).
	IsAdmin(ctx context.Context, channelID, userID string) (bool, error)

	// Close gracefully shuts down the gateway connection.
	Close() error
}

// Option-prompt emojis. The bot seeds each prompt with its own reactions;
// users answer by clicking one.
const (
	EmojiOne   = "1️⃣"
	EmojiTwo   = "2️⃣"
	EmojiThree = "3️⃣"
	EmojiFour  = "4️⃣"
	EmojiFive  = "5️⃣"
	EmojiSix   = "6️⃣"
	EmojiSeven = "7️⃣"
	EmojiEight = "8️⃣"
	EmojiNine  = "9️⃣"
	EmojiJoin  = "▶️" // forward arrow on join announcements
)

// teamEmojis maps team numbers 1..9 to their keycap emoji.
var teamEmojis = []string{
	EmojiOne, EmojiTwo, EmojiThree, EmojiFour, EmojiFive,
	EmojiSix, EmojiSeven, EmojiEight, EmojiNine,
}

// TeamEmoji returns the keycap emoji for a team number, or "" when the
// number is out of the displayable range.
func TeamEmoji(number int) string {
	if number < 1 || number > len(teamEmojis) {
		return ""
	}
	return teamEmojis[number-1]
}

// TeamNumber is the inverse of TeamEmoji, returning 0 for foreign emojis.
func TeamNumber(emoji string) int {
	for i, e := range teamEmojis {
		if e == emoji {
			return i + 1
		}
	}
	return 0
}
