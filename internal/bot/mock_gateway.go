package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mrno/scrimbot/internal/sequence"
)

// SentMessage is a message recorded by the MockGateway, with the ID it
// was assigned.
type SentMessage struct {
	ID        string
	ChannelID string
	Msg       Outbound
}

// MockGateway implements Gateway for testing. It records every outbound
// message and reaction, assigns deterministic message and channel IDs,
// and lets tests simulate user activity via React and inbound events.
type MockGateway struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan Event

	sent        []SentMessage
	msgCounter  int
	chanCounter int

	// reactions is keyed by "channelID:messageID", then emoji.
	reactions map[string]map[string]*sequence.Reaction
	latest    map[string]string // channelID -> last message ID

	readGrants map[string]bool // "channelID:userID" -> allowed
	admins     map[string]bool // userID -> admin
	deletedCh  []string
	channels   map[string]string // channelID -> category
}

// NewMockGateway creates a MockGateway with a buffered inbound channel.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		inbound:    make(chan Event, 100),
		reactions:  make(map[string]map[string]*sequence.Reaction),
		latest:     make(map[string]string),
		readGrants: make(map[string]bool),
		admins:     make(map[string]bool),
		channels:   make(map[string]string),
	}
}

// Connect marks the gateway as connected.
func (m *MockGateway) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock gateway: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound event channel. Must be called after Connect.
func (m *MockGateway) Listen(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock gateway: not connected")
	}
	return m.inbound, nil
}

// record stores an outbound message and returns its generated ID.
// Caller must hold the lock.
func (m *MockGateway) record(channelID string, msg Outbound) string {
	m.msgCounter++
	id := fmt.Sprintf("msg-%d", m.msgCounter)
	m.sent = append(m.sent, SentMessage{ID: id, ChannelID: channelID, Msg: msg})
	m.latest[channelID] = id
	return id
}

// SendChannel records the message and returns its generated ID.
func (m *MockGateway) SendChannel(ctx context.Context, channelID string, msg Outbound) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(channelID, msg), nil
}

// DMChannel returns the deterministic DM channel ID for a user.
func (m *MockGateway) DMChannel(userID string) string {
	return "dm-" + userID
}

// SendDM records the message in the user's DM channel.
func (m *MockGateway) SendDM(ctx context.Context, userID string, msg Outbound) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID := "dm-" + userID
	return m.record(channelID, msg), channelID, nil
}

func (m *MockGateway) reactionFor(channelID, messageID, emoji string) *sequence.Reaction {
	key := channelID + ":" + messageID
	byEmoji, ok := m.reactions[key]
	if !ok {
		byEmoji = make(map[string]*sequence.Reaction)
		m.reactions[key] = byEmoji
	}
	r, ok := byEmoji[emoji]
	if !ok {
		r = &sequence.Reaction{Emoji: emoji}
		byEmoji[emoji] = r
	}
	return r
}

// AddReaction records the bot's own reaction.
func (m *MockGateway) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reactionFor(channelID, messageID, emoji)
	r.Count++
	r.Me = true
	return nil
}

// RemoveReaction decrements a reaction count.
func (m *MockGateway) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.reactionFor(channelID, messageID, emoji); r.Count > 0 {
		r.Count--
	}
	return nil
}

// MessageReactions returns the recorded reaction summary of a message.
func (m *MockGateway) MessageReactions(ctx context.Context, channelID, messageID string) ([]sequence.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sequence.Reaction
	for _, r := range m.reactions[channelID+":"+messageID] {
		out = append(out, *r)
	}
	return out, nil
}

// LatestMessageID returns the last recorded message in a channel.
func (m *MockGateway) LatestMessageID(ctx context.Context, channelID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest[channelID], nil
}

// CreateGameChannel returns a generated channel ID.
func (m *MockGateway) CreateGameChannel(ctx context.Context, name, category string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chanCounter++
	id := fmt.Sprintf("chan-%d", m.chanCounter)
	m.channels[id] = category
	return id, nil
}

// DeleteChannel records the deletion.
func (m *MockGateway) DeleteChannel(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channelID)
	m.deletedCh = append(m.deletedCh, channelID)
	return nil
}

// SetChannelRead records the permission change.
func (m *MockGateway) SetChannelRead(ctx context.Context, channelID, userID string, allow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readGrants[channelID+":"+userID] = allow
	return nil
}

// IsAdmin reports membership in the configured admin set.
func (m *MockGateway) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[userID], nil
}

// Close shuts down the mock gateway and closes the inbound channel.
func (m *MockGateway) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// --- test helpers ---

// SetAdmin marks a user as admin for IsAdmin checks.
func (m *MockGateway) SetAdmin(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[userID] = true
}

// React simulates a user adding a reaction and returns the matching Event.
func (m *MockGateway) React(userID, channelID, messageID, emoji string) Event {
	m.mu.Lock()
	m.reactionFor(channelID, messageID, emoji).Count++
	m.mu.Unlock()
	return Event{
		Type:      EventReaction,
		UserID:    userID,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
	}
}

// Message simulates a user sending a message and returns the matching Event.
// The message is recorded so LatestMessageID sees it.
func (m *MockGateway) Message(userID, channelID, content string) Event {
	m.mu.Lock()
	m.msgCounter++
	id := fmt.Sprintf("msg-%d", m.msgCounter)
	m.latest[channelID] = id
	m.mu.Unlock()
	return Event{
		Type:      EventMessage,
		UserID:    userID,
		UserName:  userID,
		ChannelID: channelID,
		MessageID: id,
		Content:   content,
		DM:        strings.HasPrefix(channelID, "dm-"),
	}
}

// SimulateInbound pushes an event into the inbound channel, as if it
// arrived from the platform.
func (m *MockGateway) SimulateInbound(ev Event) {
	m.inbound <- ev
}

// Sent returns a copy of all recorded outbound messages.
func (m *MockGateway) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSent returns the most recent message sent to the channel, or nil.
func (m *MockGateway) LastSent(channelID string) *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].ChannelID == channelID {
			msg := m.sent[i]
			return &msg
		}
	}
	return nil
}

// ReadAllowed reports the recorded read permission for a channel/user pair.
func (m *MockGateway) ReadAllowed(channelID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readGrants[channelID+":"+userID]
}

// DeletedChannels returns the IDs of channels removed via DeleteChannel.
func (m *MockGateway) DeletedChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletedCh))
	copy(out, m.deletedCh)
	return out
}
