package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrno/scrimbot/internal/db"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/sequence"
)

// CommandHandler processes prefixed text commands. Game commands are
// issued inside a game's own channel; lobby membership is resolved from
// the channel the command arrived in.
type CommandHandler struct {
	gw       Gateway
	svc      *lobby.Service
	registry *sequence.Registry
	flowDeps FlowDeps
	prefix   string
	createCh string // channel for !scrims announcements
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	Gateway       Gateway
	Lobby         *lobby.Service
	Registry      *sequence.Registry
	FlowDeps      FlowDeps
	Prefix        string // defaults to "!"
	CreateChannel string
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("bot: command handler: gateway is required")
	}
	if opts.Lobby == nil {
		return nil, fmt.Errorf("bot: command handler: lobby is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bot: command handler: registry is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "!"
	}
	return &CommandHandler{
		gw:       opts.Gateway,
		svc:      opts.Lobby,
		registry: opts.Registry,
		flowDeps: opts.FlowDeps,
		prefix:   prefix,
		createCh: opts.CreateChannel,
	}, nil
}

// IsCommand reports whether the text is a prefixed command.
func (ch *CommandHandler) IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), ch.prefix)
}

// Execute parses and runs a command, replying in the originating channel.
func (ch *CommandHandler) Execute(ctx context.Context, ev Event) {
	text := strings.TrimPrefix(strings.TrimSpace(ev.Content), ch.prefix)
	args := strings.Fields(text)
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "help":
		ch.reply(ctx, ev, ch.helpText())
	case "reg":
		ch.cmdReg(ctx, ev)
	case "scrims":
		ch.cmdScrims(ctx, ev)
	case "newgame":
		ch.cmdNewGame(ctx, ev)
	case "join":
		ch.cmdJoin(ctx, ev, args[1:])
	case "leave":
		ch.cmdLeave(ctx, ev)
	case "kick":
		ch.cmdKick(ctx, ev, args[1:])
	case "start":
		ch.cmdStart(ctx, ev)
	case "delete":
		ch.cmdDelete(ctx, ev)
	case "teams":
		ch.cmdTeams(ctx, ev)
	default:
		ch.reply(ctx, ev, fmt.Sprintf("Unknown command `%s%s`\n%s", ch.prefix, args[0], ch.helpText()))
	}
}

func (ch *CommandHandler) helpText() string {
	p := ch.prefix
	return "Commands:\n" +
		"`" + p + "reg` — register yourself\n" +
		"`" + p + "scrims` — post the create-game announcement (admin)\n" +
		"`" + p + "newgame` — start game setup over DM\n" +
		"`" + p + "join [team]` — join this game, or claim a team spot\n" +
		"`" + p + "leave` — leave this game\n" +
		"`" + p + "kick @user` — remove a player (creator only)\n" +
		"`" + p + "start` — start this game (creator only)\n" +
		"`" + p + "delete` — cancel this game (creator only)\n" +
		"`" + p + "teams` — show team rosters"
}

// reply posts a plain text response to the originating channel.
func (ch *CommandHandler) reply(ctx context.Context, ev Event, text string) {
	if _, err := ch.gw.SendChannel(ctx, ev.ChannelID, Outbound{Text: text}); err != nil {
		log.Printf("bot: command reply in %s: %v", ev.ChannelID, err)
	}
}

func (ch *CommandHandler) cmdReg(ctx context.Context, ev Event) {
	player, err := ch.svc.GetOrCreatePlayer(ev.UserID, ev.UserName)
	if err != nil {
		log.Printf("bot: reg %s: %v", ev.UserID, err)
		ch.reply(ctx, ev, "Registration failed, try again later")
		return
	}
	ch.reply(ctx, ev, fmt.Sprintf("Registered %s", player.Name))
}

func (ch *CommandHandler) cmdScrims(ctx context.Context, ev Event) {
	admin, err := ch.gw.IsAdmin(ctx, ev.ChannelID, ev.UserID)
	if err != nil {
		log.Printf("bot: admin check for %s: %v", ev.UserID, err)
		return
	}
	if !admin {
		ch.reply(ctx, ev, "Only admins can post the create-game announcement")
		return
	}

	target := ch.createCh
	if target == "" {
		target = ev.ChannelID
	}
	embed := &Embed{
		Title: "🛠️ CREATE GAME",
		Description: "React below " + EmojiJoin + " and we'll start setting up your game\n" +
			"*Make sure your DMs are on*",
		Color: colorScrim,
	}
	msgID, err := ch.gw.SendChannel(ctx, target, Outbound{Embed: embed})
	if err != nil {
		log.Printf("bot: post create announcement: %v", err)
		return
	}
	if err := ch.gw.AddReaction(ctx, target, msgID, EmojiJoin); err != nil {
		log.Printf("bot: seed create reaction: %v", err)
	}
	if err := db.SetProperty(ch.flowDeps.DB, models.PropCreateMessageID, msgID); err != nil {
		log.Printf("bot: store create message id: %v", err)
	}
}

func (ch *CommandHandler) cmdNewGame(ctx context.Context, ev Event) {
	seq := NewGameSequence(ch.flowDeps, ev.UserID, ev.UserName)
	replaced, err := ch.registry.Start(ctx, seq)
	if err != nil {
		log.Printf("bot: start creation sequence for %s: %v", ev.UserID, err)
		return
	}
	if replaced {
		log.Printf("bot: user %s restarted game creation, previous answers discarded", ev.UserID)
	}
}

// gameHere resolves the game owning the channel a command was issued in.
func (ch *CommandHandler) gameHere(ctx context.Context, ev Event) (*models.Game, bool) {
	game, err := ch.svc.GameByChannel(ev.ChannelID)
	if errors.Is(err, lobby.ErrNotFound) {
		ch.reply(ctx, ev, "This isn't a game channel")
		return nil, false
	}
	if err != nil {
		log.Printf("bot: resolve game for channel %s: %v", ev.ChannelID, err)
		return nil, false
	}
	return game, true
}

func (ch *CommandHandler) cmdJoin(ctx context.Context, ev Event, args []string) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	player, err := ch.svc.GetOrCreatePlayer(ev.UserID, ev.UserName)
	if err != nil {
		log.Printf("bot: join: %v", err)
		return
	}

	if len(args) == 0 {
		switch err := ch.svc.AddPlayerToGame(game.ID, player); {
		case errors.Is(err, lobby.ErrGameFull):
			ch.reply(ctx, ev, "This game is already full")
		case err != nil:
			log.Printf("bot: join game %d: %v", game.ID, err)
		default:
			ch.reply(ctx, ev, fmt.Sprintf("%s joined game %d", player.Name, game.ID))
		}
		return
	}

	teamNum, err := strconv.Atoi(args[0])
	if err != nil {
		ch.reply(ctx, ev, fmt.Sprintf("'%s' is not a team number", args[0]))
		return
	}
	ok, err = ch.svc.AddPlayerToTeam(game.ID, teamNum, player)
	if err != nil {
		log.Printf("bot: join team %d of game %d: %v", teamNum, game.ID, err)
		return
	}
	if !ok {
		ch.reply(ctx, ev, fmt.Sprintf("Team %d doesn't exist or is already full", teamNum))
		return
	}
	ch.reply(ctx, ev, fmt.Sprintf("%s is on team %d", player.Name, teamNum))
}

func (ch *CommandHandler) cmdLeave(ctx context.Context, ev Event) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	player, err := ch.svc.GetOrCreatePlayer(ev.UserID, ev.UserName)
	if err != nil {
		log.Printf("bot: leave: %v", err)
		return
	}
	if err := ch.svc.RemovePlayerFromGame(game.ID, player); err != nil {
		log.Printf("bot: leave game %d: %v", game.ID, err)
		return
	}
	if err := ch.gw.SetChannelRead(ctx, ev.ChannelID, ev.UserID, false); err != nil {
		log.Printf("bot: revoke read on %s: %v", ev.ChannelID, err)
	}
	ch.reply(ctx, ev, fmt.Sprintf("%s left game %d", player.Name, game.ID))
}

// mentionRe matches Discord mention formats: <@ID> or <@!ID>.
var mentionRe = regexp.MustCompile(`<@!?(\d+)>`)

func (ch *CommandHandler) cmdKick(ctx context.Context, ev Event, args []string) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	if game.Creator.DiscordID != ev.UserID {
		ch.reply(ctx, ev, "Only the game creator can kick players")
		return
	}
	if len(args) == 0 {
		ch.reply(ctx, ev, "Usage: "+ch.prefix+"kick @user")
		return
	}
	m := mentionRe.FindStringSubmatch(args[0])
	if m == nil {
		ch.reply(ctx, ev, "Mention the player to kick, e.g. "+ch.prefix+"kick @someone")
		return
	}
	targetID := m[1]
	if targetID == game.Creator.DiscordID {
		ch.reply(ctx, ev, "The creator can't be kicked — use "+ch.prefix+"delete instead")
		return
	}

	target, err := ch.svc.GetOrCreatePlayer(targetID, "")
	if err != nil {
		log.Printf("bot: kick: %v", err)
		return
	}
	if err := ch.svc.RemovePlayerFromGame(game.ID, target); err != nil {
		log.Printf("bot: kick from game %d: %v", game.ID, err)
		return
	}
	if err := ch.gw.SetChannelRead(ctx, ev.ChannelID, targetID, false); err != nil {
		log.Printf("bot: revoke read on %s: %v", ev.ChannelID, err)
	}
	ch.reply(ctx, ev, "Player kicked")
}

func (ch *CommandHandler) cmdStart(ctx context.Context, ev Event) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	if game.Creator.DiscordID != ev.UserID {
		ch.reply(ctx, ev, "Only the game creator can start the game")
		return
	}

	switch err := ch.svc.StartGame(game.ID); {
	case errors.Is(err, lobby.ErrGameNotFull):
		ch.reply(ctx, ev, "Can't start yet — the game isn't full")
	case errors.Is(err, lobby.ErrPlayersUnassigned):
		ch.reply(ctx, ev, "Can't start yet — not all players have picked a team")
	case errors.Is(err, lobby.ErrShortPool):
		ch.reply(ctx, ev, "Can't start — not enough players to fill all teams")
	case errors.Is(err, lobby.ErrNotWaiting):
		ch.reply(ctx, ev, "This game has already started")
	case err != nil:
		log.Printf("bot: start game %d: %v", game.ID, err)
	default:
		started, err := ch.svc.GameByID(game.ID)
		if err != nil {
			log.Printf("bot: reload started game %d: %v", game.ID, err)
			return
		}
		if _, err := ch.gw.SendChannel(ctx, ev.ChannelID, Outbound{Embed: rosterEmbed(started)}); err != nil {
			log.Printf("bot: post rosters for game %d: %v", game.ID, err)
		}
	}
}

func (ch *CommandHandler) cmdDelete(ctx context.Context, ev Event) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	if game.Creator.DiscordID != ev.UserID {
		ch.reply(ctx, ev, "Only the game creator can delete the game")
		return
	}
	if err := ch.svc.DeleteGame(game.ID); err != nil {
		log.Printf("bot: delete game %d: %v", game.ID, err)
		return
	}
	// The model never touches Discord; channel cleanup happens here.
	if game.ChannelID != "" {
		if err := ch.gw.DeleteChannel(ctx, game.ChannelID); err != nil {
			log.Printf("bot: delete channel %s: %v", game.ChannelID, err)
		}
	}
}

func (ch *CommandHandler) cmdTeams(ctx context.Context, ev Event) {
	game, ok := ch.gameHere(ctx, ev)
	if !ok {
		return
	}
	if _, err := ch.gw.SendChannel(ctx, ev.ChannelID, Outbound{Embed: rosterEmbed(game)}); err != nil {
		log.Printf("bot: post rosters for game %d: %v", game.ID, err)
	}
}

// rosterEmbed renders the pool and team membership of a game.
func rosterEmbed(game *models.Game) *Embed {
	embed := &Embed{
		Title: fmt.Sprintf("Game %d — %s", game.ID, game.State),
		Color: colorScrim,
	}
	for _, team := range game.Teams {
		name := fmt.Sprintf("Team %d (%d/%d)", team.Number, len(team.Players), team.Size)
		if team.Number == models.PoolTeam {
			name = fmt.Sprintf("Unassigned (%d/%d cap)", len(team.Players), team.Size)
		}
		value := "—"
		if len(team.Players) > 0 {
			names := make([]string, len(team.Players))
			for i, p := range team.Players {
				names[i] = p.Name
			}
			value = strings.Join(names, "\n")
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: name, Value: value, Inline: true})
	}
	return embed
}
