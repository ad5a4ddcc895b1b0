package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrno/scrimbot/internal/db"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/sequence"
)

// Router decides what an inbound event means: a command, an answer to a
// user's in-flight creation sequence, or a reaction on one of the bot's
// standing messages (create announcement, join announcement, lobby post).
type Router struct {
	gw       Gateway
	svc      *lobby.Service
	registry *sequence.Registry
	commands *CommandHandler
	flowDeps FlowDeps
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Gateway  Gateway
	Lobby    *lobby.Service
	Registry *sequence.Registry
	Commands *CommandHandler
	FlowDeps FlowDeps
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("bot: router: gateway is required")
	}
	if opts.Lobby == nil {
		return nil, fmt.Errorf("bot: router: lobby is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bot: router: registry is required")
	}
	if opts.Commands == nil {
		return nil, fmt.Errorf("bot: router: command handler is required")
	}
	return &Router{
		gw:       opts.Gateway,
		svc:      opts.Lobby,
		registry: opts.Registry,
		commands: opts.Commands,
		flowDeps: opts.FlowDeps,
	}, nil
}

// Route handles one inbound event end to end.
func (r *Router) Route(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventMessage:
		r.routeMessage(ctx, ev)
	case EventReaction:
		r.routeReaction(ctx, ev)
	}
}

func (r *Router) routeMessage(ctx context.Context, ev Event) {
	if r.commands.IsCommand(ev.Content) {
		r.commands.Execute(ctx, ev)
		return
	}
	// Non-command text only matters as an answer to an in-flight sequence,
	// and sequence prompts live in the user's DM channel. Guild chatter is
	// never an answer.
	if !ev.DM {
		return
	}
	r.registry.Dispatch(ctx, ev.UserID, sequence.Event{
		Kind:      sequence.KindMessage,
		UserID:    ev.UserID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
		Content:   ev.Content,
	})
}

func (r *Router) routeReaction(ctx context.Context, ev Event) {
	// A user mid-creation gets their reactions routed to the sequence;
	// the registry's gating drops anything not aimed at the prompt.
	if r.registry.Active(ev.UserID) {
		outcome := r.registry.Dispatch(ctx, ev.UserID, sequence.Event{
			Kind:      sequence.KindReaction,
			UserID:    ev.UserID,
			ChannelID: ev.ChannelID,
			MessageID: ev.MessageID,
			Emoji:     ev.Emoji,
		})
		if outcome == sequence.OutcomeHandled || outcome == sequence.OutcomeTerminal {
			return
		}
	}
	r.routeStandingReaction(ctx, ev)
}

// routeStandingReaction matches a reaction against the bot's standing
// messages. Reactions on anything else are ignored.
func (r *Router) routeStandingReaction(ctx context.Context, ev Event) {
	createMsgID, err := db.GetProperty(r.flowDeps.DB, models.PropCreateMessageID)
	if err != nil {
		log.Printf("bot: read create message id: %v", err)
	}
	if createMsgID != "" && ev.MessageID == createMsgID {
		if ev.Emoji == EmojiJoin {
			r.startCreation(ctx, ev)
		}
		return
	}

	if game, err := r.svc.GameBySignupMessage(ev.MessageID); err == nil {
		if ev.Emoji == EmojiJoin {
			r.joinGame(ctx, ev, game)
		}
		return
	} else if !errors.Is(err, lobby.ErrNotFound) {
		log.Printf("bot: resolve signup message %s: %v", ev.MessageID, err)
		return
	}

	if game, err := r.svc.GameByLobbyMessage(ev.MessageID); err == nil {
		r.claimTeam(ctx, ev, game)
	} else if !errors.Is(err, lobby.ErrNotFound) {
		log.Printf("bot: resolve lobby message %s: %v", ev.MessageID, err)
	}
}

func (r *Router) startCreation(ctx context.Context, ev Event) {
	seq := NewGameSequence(r.flowDeps, ev.UserID, ev.UserName)
	replaced, err := r.registry.Start(ctx, seq)
	if err != nil {
		log.Printf("bot: start creation sequence for %s: %v", ev.UserID, err)
		return
	}
	if replaced {
		log.Printf("bot: user %s restarted game creation, previous answers discarded", ev.UserID)
	}
}

func (r *Router) joinGame(ctx context.Context, ev Event, game *models.Game) {
	player, err := r.svc.GetOrCreatePlayer(ev.UserID, ev.UserName)
	if err != nil {
		log.Printf("bot: join via reaction: %v", err)
		return
	}
	switch err := r.svc.AddPlayerToGame(game.ID, player); {
	case errors.Is(err, lobby.ErrGameFull):
		if err := r.gw.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.Emoji, ev.UserID); err != nil {
			log.Printf("bot: clear join reaction: %v", err)
		}
		r.dm(ctx, ev.UserID, fmt.Sprintf("Game %d is already full", game.ID))
	case err != nil:
		log.Printf("bot: join game %d: %v", game.ID, err)
	default:
		if game.ChannelID != "" {
			if err := r.gw.SetChannelRead(ctx, game.ChannelID, ev.UserID, true); err != nil {
				log.Printf("bot: grant read on %s: %v", game.ChannelID, err)
			}
		}
		r.dm(ctx, ev.UserID, fmt.Sprintf("You joined game %d — see you in its channel!", game.ID))
	}
}

func (r *Router) claimTeam(ctx context.Context, ev Event, game *models.Game) {
	teamNum := TeamNumber(ev.Emoji)
	if teamNum == 0 {
		return // foreign emoji on the lobby post
	}
	player, err := r.svc.GetOrCreatePlayer(ev.UserID, ev.UserName)
	if err != nil {
		log.Printf("bot: claim team: %v", err)
		return
	}
	ok, err := r.svc.AddPlayerToTeam(game.ID, teamNum, player)
	if err != nil {
		log.Printf("bot: claim team %d of game %d: %v", teamNum, game.ID, err)
		return
	}
	if !ok {
		if err := r.gw.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.Emoji, ev.UserID); err != nil {
			log.Printf("bot: clear team reaction: %v", err)
		}
		r.dm(ctx, ev.UserID, fmt.Sprintf("Team %d of game %d is full or doesn't exist", teamNum, game.ID))
	}
}

func (r *Router) dm(ctx context.Context, userID, text string) {
	if _, _, err := r.gw.SendDM(ctx, userID, Outbound{Text: text}); err != nil {
		log.Printf("bot: dm %s: %v", userID, err)
	}
}
