package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/db"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/modes"
	"github.com/mrno/scrimbot/internal/sequence"
	"gorm.io/gorm"
)

const (
	testCreateChannel = "10"
	testJoinChannel   = "20"
)

// env bundles a fully wired bot against an in-memory database and a
// mock gateway.
type env struct {
	gw       *MockGateway
	gdb      *gorm.DB
	cfg      *config.Config
	svc      *lobby.Service
	registry *sequence.Registry
	commands *CommandHandler
	router   *Router
}

func newTestEnv(t *testing.T) *env {
	t.Helper()
	cfg, err := config.Parse([]byte(`
bot:
  token: t
guild:
  id: "1"
  create_game_channel: "` + testCreateChannel + `"
  join_channel: "` + testJoinChannel + `"
database:
  driver: sqlite
  path: ":memory:"
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(gdb, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gw := NewMockGateway()
	if err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("connect gateway: %v", err)
	}
	svc, err := lobby.NewService(gdb)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	registry, err := sequence.NewRegistry(gw)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	flowDeps := FlowDeps{
		Gateway:       gw,
		Lobby:         svc,
		DB:            gdb,
		JoinChannelID: cfg.Guild.JoinChannel,
		GamesCategory: cfg.Guild.GamesCategory,
		MaxTeams:      cfg.Limits.MaxTeams,
		MaxPlayers:    cfg.Limits.MaxPlayers,
	}
	commands, err := NewCommandHandler(CommandHandlerOpts{
		Gateway:       gw,
		Lobby:         svc,
		Registry:      registry,
		FlowDeps:      flowDeps,
		Prefix:        cfg.Bot.CommandPrefix,
		CreateChannel: cfg.Guild.CreateGameChannel,
	})
	if err != nil {
		t.Fatalf("new command handler: %v", err)
	}
	router, err := NewRouter(RouterOpts{
		Gateway:  gw,
		Lobby:    svc,
		Registry: registry,
		Commands: commands,
		FlowDeps: flowDeps,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &env{
		gw:       gw,
		gdb:      gdb,
		cfg:      cfg,
		svc:      svc,
		registry: registry,
		commands: commands,
		router:   router,
	}
}

// lastDM returns the most recent message the bot DM'd to the user.
func (e *env) lastDM(t *testing.T, userID string) SentMessage {
	t.Helper()
	msg := e.gw.LastSent(e.gw.DMChannel(userID))
	if msg == nil {
		t.Fatalf("no DM sent to %s", userID)
	}
	return *msg
}

// reactOnPrompt simulates the user clicking an emoji on their latest DM
// prompt and routes the resulting event.
func (e *env) reactOnPrompt(t *testing.T, userID, emoji string) {
	t.Helper()
	prompt := e.lastDM(t, userID)
	e.router.Route(context.Background(), e.gw.React(userID, prompt.ChannelID, prompt.ID, emoji))
}

// answer simulates the user typing a DM reply and routes it.
func (e *env) answer(userID, content string) {
	e.router.Route(context.Background(), e.gw.Message(userID, e.gw.DMChannel(userID), content))
}

// command routes a prefixed command typed in the given channel.
func (e *env) command(userID, channelID, text string) {
	ev := e.gw.Message(userID, channelID, text)
	e.router.Route(context.Background(), ev)
}

// player fetches or creates a player row.
func (e *env) player(t *testing.T, userID string) *models.Player {
	t.Helper()
	p, err := e.svc.GetOrCreatePlayer(userID, userID)
	if err != nil {
		t.Fatalf("get or create %s: %v", userID, err)
	}
	return p
}

// makeGame creates a game directly through the lobby service, with a
// channel and signup/lobby messages wired up like the creation flow
// would have done.
func (e *env) makeGame(t *testing.T, creatorID, modeKey string) *models.Game {
	t.Helper()
	ctx := context.Background()
	creator := e.player(t, creatorID)
	mode, err := modes.ByKey(modeKey)
	if err != nil {
		t.Fatalf("mode %s: %v", modeKey, err)
	}
	game, err := e.svc.CreateGame(lobby.CreateGameOpts{
		Creator:  creator,
		Platform: "PC",
		Mode:     mode,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	channelID, err := e.gw.CreateGameChannel(ctx, fmt.Sprintf("game-%d", game.ID), "Games")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	lobbyMsg, err := e.gw.SendChannel(ctx, channelID, Outbound{Text: "lobby"})
	if err != nil {
		t.Fatalf("post lobby message: %v", err)
	}
	signupMsg, err := e.gw.SendChannel(ctx, testJoinChannel, Outbound{Text: "signup"})
	if err != nil {
		t.Fatalf("post signup message: %v", err)
	}
	err = e.svc.UpdateGameRefs(game.ID, lobby.GameRefs{
		ChannelID:       channelID,
		LobbyMessageID:  lobbyMsg,
		SignupMessageID: signupMsg,
	})
	if err != nil {
		t.Fatalf("update refs: %v", err)
	}
	game, err = e.svc.GameByID(game.ID)
	if err != nil {
		t.Fatalf("reload game: %v", err)
	}
	return game
}

func TestDaemonLifecycle(t *testing.T) {
	e := newTestEnv(t)
	var out bytes.Buffer
	daemon, err := NewDaemon(DaemonOpts{
		DB:      e.gdb,
		Config:  e.cfg,
		Gateway: e.gw,
		Out:     &out,
	})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Run(ctx) }()

	// Drive a command through the live event loop.
	e.gw.SimulateInbound(e.gw.Message("u1", "guild-ch", "!reg"))

	deadline := time.After(2 * time.Second)
	for {
		if msg := e.gw.LastSent("guild-ch"); msg != nil {
			if !strings.Contains(msg.Msg.Text, "Registered u1") {
				t.Fatalf("unexpected reply %q", msg.Msg.Text)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reply to !reg before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if !strings.Contains(out.String(), "Scrimbot online") {
		t.Errorf("missing online banner in output: %q", out.String())
	}
}

func TestNewDaemonValidation(t *testing.T) {
	e := newTestEnv(t)
	if _, err := NewDaemon(DaemonOpts{Config: e.cfg, Gateway: e.gw}); err == nil {
		t.Error("expected error without db")
	}
	if _, err := NewDaemon(DaemonOpts{DB: e.gdb, Gateway: e.gw}); err == nil {
		t.Error("expected error without config")
	}
	if _, err := NewDaemon(DaemonOpts{DB: e.gdb, Config: e.cfg}); err == nil {
		t.Error("expected error without gateway")
	}
}
