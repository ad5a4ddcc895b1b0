package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mrno/scrimbot/internal/db"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/modes"
	"github.com/mrno/scrimbot/internal/sequence"
	"gorm.io/gorm"
)

// Game-creation flow states.
const (
	statePlatform    sequence.State = "choose_platform"
	stateTeamCount   sequence.State = "choose_team_count"
	stateTeamSize    sequence.State = "choose_team_size"
	stateFFACount    sequence.State = "choose_ffa_player_count"
	stateAssignment  sequence.State = "choose_team_assignment"
	stateDescription sequence.State = "enter_description"
	stateConfirm     sequence.State = "confirm"
)

// colorScrim is the embed sidebar color for game-creation prompts.
const colorScrim = 0x4A90E2

// FlowDeps holds the collaborators a game-creation flow needs.
type FlowDeps struct {
	Gateway       Gateway
	Lobby         *lobby.Service
	DB            *gorm.DB
	JoinChannelID string
	GamesCategory string // fallback when the property row is absent
	MaxTeams      int
	MaxPlayers    int
}

// newGameFlow accumulates the user's answers while walking them through
// game setup over DM. One flow owns one sequence.
type newGameFlow struct {
	deps     FlowDeps
	userID   string
	userName string
	seq      *sequence.Sequence

	// Transient answers, wiped on restart.
	platform   string
	teamCount  int
	teamSize   int
	ffaPlayers int
	modeName   string
	desc       string
}

// NewGameSequence builds the game-creation sequence for a user. The
// returned sequence is ready to hand to a Registry.
func NewGameSequence(deps FlowDeps, userID, userName string) *sequence.Sequence {
	f := &newGameFlow{
		deps:     deps,
		userID:   userID,
		userName: userName,
	}
	seq := sequence.New(userID)
	seq.SetStarter(f.start)
	seq.OnReaction(statePlatform, f.handlePlatform)
	seq.OnMessage(stateTeamCount, f.handleTeamCount)
	seq.OnMessage(stateTeamSize, f.handleTeamSize)
	seq.OnMessage(stateFFACount, f.handleFFACount)
	seq.OnReaction(stateAssignment, f.handleAssignment)
	seq.OnMessage(stateDescription, f.handleDescription)
	seq.OnReaction(stateConfirm, f.handleConfirm)
	f.seq = seq
	return seq
}

// prompt DMs an embed to the user, seeds the option reactions, and arms
// the sequence on the new message.
func (f *newGameFlow) prompt(ctx context.Context, embed *Embed, reactions ...string) error {
	msgID, channelID, err := f.deps.Gateway.SendDM(ctx, f.userID, Outbound{Embed: embed})
	if err != nil {
		return fmt.Errorf("bot: send prompt %q: %w", embed.Title, err)
	}
	for _, emoji := range reactions {
		if err := f.deps.Gateway.AddReaction(ctx, channelID, msgID, emoji); err != nil {
			log.Printf("bot: seed reaction %s on %s: %v", emoji, msgID, err)
		}
	}
	f.seq.Await(msgID)
	return nil
}

// say DMs a plain corrective message without touching sequence state.
func (f *newGameFlow) say(ctx context.Context, text string) {
	if _, _, err := f.deps.Gateway.SendDM(ctx, f.userID, Outbound{Text: text}); err != nil {
		log.Printf("bot: dm %s: %v", f.userID, err)
	}
}

// pickedOne reads the reacted message and returns the single emoji the
// user picked, or "" when there is no unambiguous pick yet.
func (f *newGameFlow) pickedOne(ctx context.Context, ev sequence.Event) string {
	reactions, err := f.deps.Gateway.MessageReactions(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		log.Printf("bot: read reactions on %s: %v", ev.MessageID, err)
		return ""
	}
	picked := sequence.Added(reactions)
	if len(picked) != 1 {
		return ""
	}
	return picked[0]
}

// start sends the platform prompt and arms the first state.
func (f *newGameFlow) start(ctx context.Context) error {
	embed := &Embed{
		Title: "New Game!",
		Description: "What platform are you playing on?\n" +
			EmojiOne + " PC\n" +
			EmojiTwo + " PS4\n" +
			EmojiThree + " XBOX",
		Color: colorScrim,
	}
	if err := f.prompt(ctx, embed, EmojiOne, EmojiTwo, EmojiThree); err != nil {
		return err
	}
	return f.seq.Advance(statePlatform)
}

func (f *newGameFlow) handlePlatform(ctx context.Context, ev sequence.Event) error {
	switch f.pickedOne(ctx, ev) {
	case EmojiOne:
		f.platform = "PC"
	case EmojiTwo:
		f.platform = "PS4"
	case EmojiThree:
		f.platform = "XBOX"
	default:
		return nil // not an answer yet, keep waiting
	}

	embed := &Embed{
		Title: "How many teams will there be?",
		Description: fmt.Sprintf(
			"Type the number of teams. Use '0' for FFA. Max %d teams.",
			f.deps.MaxTeams),
		Color: colorScrim,
	}
	if err := f.prompt(ctx, embed); err != nil {
		return err
	}
	return f.seq.Advance(stateTeamCount)
}

func (f *newGameFlow) handleTeamCount(ctx context.Context, ev sequence.Event) error {
	count, err := strconv.Atoi(strings.TrimSpace(ev.Content))
	if err != nil {
		f.say(ctx, fmt.Sprintf("'%s' is not a number", ev.Content))
		return nil
	}
	if count != 0 && (count < 2 || count > f.deps.MaxTeams) {
		f.say(ctx, fmt.Sprintf("Number of teams must be 0 (FFA) or between 2 and %d", f.deps.MaxTeams))
		return nil
	}
	f.teamCount = count

	if count == 0 {
		embed := &Embed{
			Title: "How many players?",
			Description: fmt.Sprintf(
				"Type the total number of players for the FFA (max %d).",
				f.deps.MaxPlayers),
			Color: colorScrim,
		}
		if err := f.prompt(ctx, embed); err != nil {
			return err
		}
		return f.seq.Advance(stateFFACount)
	}

	embed := &Embed{
		Title: "How many players on each team?",
		Description: fmt.Sprintf(
			"With %d teams, teams can have at most %d players.",
			count, f.deps.MaxPlayers/count),
		Color: colorScrim,
	}
	if err := f.prompt(ctx, embed); err != nil {
		return err
	}
	return f.seq.Advance(stateTeamSize)
}

func (f *newGameFlow) handleFFACount(ctx context.Context, ev sequence.Event) error {
	count, err := strconv.Atoi(strings.TrimSpace(ev.Content))
	if err != nil {
		f.say(ctx, fmt.Sprintf("'%s' is not a number", ev.Content))
		return nil
	}
	if count < 1 || count > f.deps.MaxPlayers {
		f.say(ctx, fmt.Sprintf("Player count must be between 1 and %d", f.deps.MaxPlayers))
		return nil
	}
	f.ffaPlayers = count
	f.modeName = "FFA"

	if err := f.sendDescriptionPrompt(ctx); err != nil {
		return err
	}
	return f.seq.Advance(stateDescription)
}

func (f *newGameFlow) handleTeamSize(ctx context.Context, ev sequence.Event) error {
	size, err := strconv.Atoi(strings.TrimSpace(ev.Content))
	if err != nil {
		f.say(ctx, fmt.Sprintf("'%s' is not a number", ev.Content))
		return nil
	}
	maxSize := f.deps.MaxPlayers / f.teamCount
	if size < 1 || size > maxSize {
		f.say(ctx, fmt.Sprintf("Team size must be between 1 and %d", maxSize))
		return nil
	}
	f.teamSize = size

	// "2v2v2" style base; assignment choice appends the suffix.
	parts := make([]string, f.teamCount)
	for i := range parts {
		parts[i] = strconv.Itoa(size)
	}
	f.modeName = strings.Join(parts, "v")

	embed := &Embed{
		Title: "Random or Fixed Teams",
		Description: "Select team assignment:\n" +
			EmojiOne + " Fixed\n" +
			EmojiTwo + " Random",
		Color: colorScrim,
	}
	if err := f.prompt(ctx, embed, EmojiOne, EmojiTwo); err != nil {
		return err
	}
	return f.seq.Advance(stateAssignment)
}

func (f *newGameFlow) handleAssignment(ctx context.Context, ev sequence.Event) error {
	switch f.pickedOne(ctx, ev) {
	case EmojiOne:
		f.modeName += " Fixed Teams"
	case EmojiTwo:
		f.modeName += " Random Teams"
	default:
		return nil
	}

	if err := f.sendDescriptionPrompt(ctx); err != nil {
		return err
	}
	return f.seq.Advance(stateDescription)
}

func (f *newGameFlow) sendDescriptionPrompt(ctx context.Context) error {
	embed := &Embed{
		Title: "Game Info",
		Description: "Enter any info about your game that you'd like other " +
			"players to see: custom rules, world settings, etc. " +
			"Only the next message you send will be accepted.",
		Color: colorScrim,
	}
	return f.prompt(ctx, embed)
}

func (f *newGameFlow) handleDescription(ctx context.Context, ev sequence.Event) error {
	f.desc = ev.Content

	embed := &Embed{
		Title: "Confirm Game Setup",
		Description: fmt.Sprintf(
			"Mode: %s\nPlatform: %s\nDescription: %s\nReact %s to accept, %s to restart",
			f.modeName, f.platform, f.desc, EmojiOne, EmojiTwo),
		Color: colorScrim,
	}
	if err := f.prompt(ctx, embed, EmojiOne, EmojiTwo); err != nil {
		return err
	}
	return f.seq.Advance(stateConfirm)
}

func (f *newGameFlow) handleConfirm(ctx context.Context, ev sequence.Event) error {
	switch f.pickedOne(ctx, ev) {
	case EmojiOne:
		return f.materialize(ctx)
	case EmojiTwo:
		f.reset()
		return f.seq.Restart(ctx)
	default:
		return nil
	}
}

// reset wipes all transient answers ahead of a restart.
func (f *newGameFlow) reset() {
	f.platform = ""
	f.teamCount = 0
	f.teamSize = 0
	f.ffaPlayers = 0
	f.modeName = ""
	f.desc = ""
}

// materialize resolves the assembled mode, creates the game, the game
// channel, and the lobby/join messages, then terminates the sequence.
// External I/O failures after game creation are logged and skipped; they
// never abort the remaining side effects.
func (f *newGameFlow) materialize(ctx context.Context) error {
	mode, err := modes.ByName(f.modeName)
	if err != nil {
		// No retry path from here; the user has to start over.
		f.say(ctx, fmt.Sprintf("'%s' doesn't match any supported mode — use !newgame to try again", f.modeName))
		return fmt.Errorf("bot: confirm: %w", err)
	}

	creator, err := f.deps.Lobby.GetOrCreatePlayer(f.userID, f.userName)
	if err != nil {
		return fmt.Errorf("bot: confirm: %w", err)
	}

	game, err := f.deps.Lobby.CreateGame(lobby.CreateGameOpts{
		Creator:     creator,
		Platform:    f.platform,
		Mode:        mode,
		PlayerCap:   f.ffaPlayers,
		Description: f.desc,
	})
	if err != nil {
		return fmt.Errorf("bot: confirm: %w", err)
	}

	refs := lobby.GameRefs{}

	category, err := db.GetProperty(f.deps.DB, models.PropGamesCategory)
	if err != nil || category == "" {
		category = f.deps.GamesCategory
	}

	channelID, err := f.deps.Gateway.CreateGameChannel(ctx, fmt.Sprintf("game-%d", game.ID), category)
	if err != nil {
		log.Printf("bot: create channel for game %d: %v", game.ID, err)
	} else {
		refs.ChannelID = channelID
		if err := f.deps.Gateway.SetChannelRead(ctx, channelID, f.userID, true); err != nil {
			log.Printf("bot: grant creator read on %s: %v", channelID, err)
		}
		lobbyMsg, err := f.deps.Gateway.SendChannel(ctx, channelID, Outbound{Embed: f.lobbyEmbed(game)})
		if err != nil {
			log.Printf("bot: post lobby message for game %d: %v", game.ID, err)
		} else {
			refs.LobbyMessageID = lobbyMsg
			if game.TeamsAvailable && !game.RandomizeTeams {
				for n := 1; n < len(game.Teams); n++ {
					emoji := TeamEmoji(n)
					if emoji == "" {
						break
					}
					if err := f.deps.Gateway.AddReaction(ctx, channelID, lobbyMsg, emoji); err != nil {
						log.Printf("bot: seed team reaction %s: %v", emoji, err)
					}
				}
			}
		}
	}

	signupMsg, err := f.deps.Gateway.SendChannel(ctx, f.deps.JoinChannelID, Outbound{Embed: f.signupEmbed(game)})
	if err != nil {
		log.Printf("bot: post join announcement for game %d: %v", game.ID, err)
	} else {
		refs.SignupMessageID = signupMsg
		if err := f.deps.Gateway.AddReaction(ctx, f.deps.JoinChannelID, signupMsg, EmojiJoin); err != nil {
			log.Printf("bot: seed join reaction: %v", err)
		}
	}

	if err := f.deps.Lobby.UpdateGameRefs(game.ID, refs); err != nil {
		log.Printf("bot: persist refs for game %d: %v", game.ID, err)
	}

	return f.seq.Finish()
}

// lobbyEmbed is the summary posted in the game's own channel.
func (f *newGameFlow) lobbyEmbed(game *models.Game) *Embed {
	desc := fmt.Sprintf("Created by: %s\nMode: %s\nPlatform: %s\nDescription: %s",
		f.userName, f.modeName, f.platform, f.desc)
	if game.TeamsAvailable && !game.RandomizeTeams {
		desc += "\nReact with a team number to claim your spot."
	}
	return &Embed{
		Title:       fmt.Sprintf("Game %d Summary", game.ID),
		Description: desc,
		Color:       colorScrim,
	}
}

// signupEmbed is the public join announcement.
func (f *newGameFlow) signupEmbed(game *models.Game) *Embed {
	return &Embed{
		Title: fmt.Sprintf("Game %d — %s on %s", game.ID, f.modeName, f.platform),
		Description: fmt.Sprintf("%s\nReact %s to join!",
			f.desc, EmojiJoin),
		Color: colorScrim,
	}
}
