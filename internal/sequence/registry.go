package sequence

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// History resolves the most recent message in a channel. Message-gated
// states use it to reject stale replies.
type History interface {
	LatestMessageID(ctx context.Context, channelID string) (string, error)
}

// Outcome classifies the result of a dispatch.
type Outcome int

const (
	// OutcomeNoSequence means the user has no active sequence.
	OutcomeNoSequence Outcome = iota
	// OutcomeTerminal means the user's sequence already finished.
	OutcomeTerminal
	// OutcomeDropped means gating rejected the event (wrong kind, wrong
	// message, stale reply). Expected steady state, never an error.
	OutcomeDropped
	// OutcomeHandled means the state's handler ran.
	OutcomeHandled
)

// Registry owns all active sequences, one per user. It is the single
// authority for "does this user have an active flow" and serializes
// dispatch per user, so a second event for the same user cannot run
// before the first has armed the next state.
type Registry struct {
	history History

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.Mutex // serializes start/dispatch for one user
	seq *Sequence
}

// NewRegistry creates a Registry.
func NewRegistry(history History) (*Registry, error) {
	if history == nil {
		return nil, fmt.Errorf("sequence: registry: history is required")
	}
	return &Registry{
		history: history,
		entries: make(map[string]*entry),
	}, nil
}

// entryFor returns the per-user entry, creating it if needed.
func (r *Registry) entryFor(userID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		e = &entry{}
		r.entries[userID] = e
	}
	return e
}

// Start registers seq as its user's active sequence, replacing any prior
// one, then runs the starter. The returned bool reports whether a previous
// sequence was discarded.
func (r *Registry) Start(ctx context.Context, seq *Sequence) (bool, error) {
	if seq == nil {
		return false, fmt.Errorf("sequence: registry: nil sequence")
	}
	e := r.entryFor(seq.UserID())
	e.mu.Lock()
	defer e.mu.Unlock()

	replaced := e.seq != nil
	if replaced {
		log.Printf("sequence: replacing active sequence for user %s (state %q discarded)",
			seq.UserID(), e.seq.current)
	}
	e.seq = seq
	if err := seq.start(ctx); err != nil {
		e.seq = nil
		return replaced, fmt.Errorf("sequence: start for user %s: %w", seq.UserID(), err)
	}
	return replaced, nil
}

// Active reports whether the user has a sequence that is not terminal.
func (r *Registry) Active(userID string) bool {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq != nil && e.seq.current != None
}

// Has reports whether the user has any registered sequence, terminal or not.
func (r *Registry) Has(userID string) bool {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq != nil
}

// Dispatch routes an inbound event to the user's active sequence. All
// rejections are silent drops; mis-addressed events are the steady state
// of a reaction-driven bot, not errors.
func (r *Registry) Dispatch(ctx context.Context, userID string, ev Event) Outcome {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return OutcomeNoSequence
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seq
	if seq == nil {
		return OutcomeNoSequence
	}
	if seq.current == None {
		log.Printf("sequence: user %s sequence already finished, ignoring event", userID)
		return OutcomeTerminal
	}

	h, ok := seq.handlers[seq.current]
	if !ok {
		log.Printf("sequence: user %s in unknown state %q, dropping event", userID, seq.current)
		return OutcomeDropped
	}

	if !r.admit(ctx, seq, h.kind, ev) {
		return OutcomeDropped
	}

	seq.advanced = false
	if err := h.fn(ctx, ev); err != nil {
		log.Printf("sequence: user %s state %q handler: %v", userID, seq.current, err)
	}
	return OutcomeHandled
}

// admit applies the state-kind gating rules.
func (r *Registry) admit(ctx context.Context, seq *Sequence, kind Kind, ev Event) bool {
	switch kind {
	case KindReaction:
		// Only reactions to the sequence's own last prompt count.
		return ev.Kind == KindReaction && ev.MessageID != "" && ev.MessageID == seq.awaited
	case KindMessage:
		if ev.Kind != KindMessage {
			return false
		}
		// A reply must be a fresh message, not the prompt itself.
		if ev.MessageID == seq.awaited {
			return false
		}
		latest, err := r.history.LatestMessageID(ctx, ev.ChannelID)
		if err != nil {
			log.Printf("sequence: latest message lookup for channel %s: %v", ev.ChannelID, err)
			return false
		}
		return ev.MessageID == latest
	default:
		return false
	}
}
