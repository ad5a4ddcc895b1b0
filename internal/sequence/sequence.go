// Package sequence implements the per-user conversational state machine
// that drives multi-step question/answer flows over asynchronous Discord
// events. A Sequence is a closed set of named states, each bound to a
// handler that accepts exactly one event kind (message or reaction) and
// advances the machine explicitly when it accepts its event.
package sequence

import (
	"context"
	"fmt"
)

// Kind is the event kind a state's handler accepts.
type Kind int

const (
	// KindMessage gates a state on a fresh text message in the user's DM
	// channel.
	KindMessage Kind = iota
	// KindReaction gates a state on a reaction to the sequence's awaited
	// message.
	KindReaction
)

// State identifies a handler within a sequence. The zero value None marks
// the terminal state.
type State string

// None is the terminal state: the sequence has finished and ignores all
// further events.
const None State = ""

// Event is a single inbound platform event, either a text message or an
// emoji reaction.
type Event struct {
	Kind      Kind
	UserID    string
	ChannelID string
	MessageID string
	Content   string // message events
	Emoji     string // reaction events
}

// Reaction is one entry of a message's reaction summary.
type Reaction struct {
	Emoji string
	Count int
	Me    bool // the bot itself reacted with this emoji
}

// HandlerFunc processes an event that passed the state's gating check.
// A handler that accepts its event must call Advance (or Finish) exactly
// once before returning; a handler that rejects input (validation failure)
// re-prompts and leaves the state untouched.
type HandlerFunc func(ctx context.Context, ev Event) error

type handler struct {
	kind Kind
	fn   HandlerFunc
}

// Sequence is one user's active conversational flow. It is not safe for
// concurrent use on its own; the Registry serializes dispatch per user.
type Sequence struct {
	userID   string
	starter  func(ctx context.Context) error
	handlers map[State]handler

	current  State
	awaited  string // message ID of the last prompt this sequence sent
	advanced bool   // set once per dispatch by Advance
}

// New creates an empty Sequence for the given user. Callers register a
// starter and handlers before handing the sequence to a Registry.
func New(userID string) *Sequence {
	return &Sequence{
		userID:   userID,
		handlers: make(map[State]handler),
	}
}

// UserID returns the owning user's platform ID.
func (s *Sequence) UserID() string { return s.userID }

// Current returns the current state (None when terminal).
func (s *Sequence) Current() State { return s.current }

// AwaitedMessage returns the ID of the prompt message the sequence is
// tracking for reaction gating.
func (s *Sequence) AwaitedMessage() string { return s.awaited }

// SetStarter registers the entry action. The starter sends the first
// prompt and arms the first state via Advance.
func (s *Sequence) SetStarter(fn func(ctx context.Context) error) {
	s.starter = fn
}

// OnMessage registers a message-gated handler for a state.
func (s *Sequence) OnMessage(state State, fn HandlerFunc) {
	s.handlers[state] = handler{kind: KindMessage, fn: fn}
}

// OnReaction registers a reaction-gated handler for a state.
func (s *Sequence) OnReaction(state State, fn HandlerFunc) {
	s.handlers[state] = handler{kind: KindReaction, fn: fn}
}

// Await records the message the sequence just sent; reaction-gated states
// only accept reactions to this message, and message-gated states reject
// it as a reply candidate.
func (s *Sequence) Await(messageID string) {
	s.awaited = messageID
}

// Advance moves the sequence to the next state. Only the currently
// dispatched handler (or the starter) may call it, and at most once per
// dispatch.
func (s *Sequence) Advance(next State) error {
	if s.advanced {
		return fmt.Errorf("sequence: state %q advanced twice in one dispatch", s.current)
	}
	if next != None {
		if _, ok := s.handlers[next]; !ok {
			return fmt.Errorf("sequence: advance to unknown state %q", next)
		}
	}
	s.current = next
	s.advanced = true
	return nil
}

// Finish moves the sequence to the terminal state.
func (s *Sequence) Finish() error {
	return s.Advance(None)
}

// Restart clears the transition guard and re-runs the starter. Concrete
// flows call it after wiping their transient answers.
func (s *Sequence) Restart(ctx context.Context) error {
	if s.starter == nil {
		return fmt.Errorf("sequence: no starter registered")
	}
	s.advanced = false
	return s.starter(ctx)
}

// start runs the entry action. Called by the Registry under the user's
// dispatch lock.
func (s *Sequence) start(ctx context.Context) error {
	if s.starter == nil {
		return fmt.Errorf("sequence: no starter registered")
	}
	s.advanced = false
	if err := s.starter(ctx); err != nil {
		return err
	}
	if !s.advanced {
		return fmt.Errorf("sequence: starter did not arm a first state")
	}
	return nil
}

// Added filters a reaction summary down to the emojis a user picked: the
// bot seeds each option with its own reaction, so a user's choice is any
// emoji whose count exceeds the bot's, or any emoji the bot never added.
func Added(reactions []Reaction) []string {
	var picked []string
	for _, r := range reactions {
		if r.Me && r.Count > 1 {
			picked = append(picked, r.Emoji)
		} else if !r.Me && r.Count > 0 {
			picked = append(picked, r.Emoji)
		}
	}
	return picked
}
