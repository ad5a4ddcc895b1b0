package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/db"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/modes"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *lobby.Service) {
	t.Helper()
	cfg, err := config.Parse([]byte(`
bot:
  token: t
guild:
  id: "1"
  create_game_channel: "10"
  join_channel: "20"
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
	svc, err := lobby.NewService(gdb)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	if err := registerRoutes(router, gdb); err != nil {
		t.Fatalf("register routes: %v", err)
	}
	return router, gdb, svc
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func seedGame(t *testing.T, svc *lobby.Service, creatorID string) uint {
	t.Helper()
	creator, err := svc.GetOrCreatePlayer(creatorID, creatorID)
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	mode, err := modes.ByKey("fixed2v2")
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	game, err := svc.CreateGame(lobby.CreateGameOpts{
		Creator:  creator,
		Platform: "PC",
		Mode:     mode,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game.ID
}

func TestRegisterRoutesNilDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if err := registerRoutes(gin.New(), nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	w := get(t, router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGameList(t *testing.T) {
	router, _, svc := newTestRouter(t)
	seedGame(t, svc, "alice")
	seedGame(t, svc, "bob")

	w := get(t, router, "/api/games")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var views []gameView
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 games, got %d", len(views))
	}
	if views[0].Mode != "2v2 Fixed Teams" || views[0].Platform != "PC" {
		t.Errorf("unexpected view %+v", views[0])
	}
	if len(views[0].Teams) != 3 {
		t.Errorf("expected pool + 2 teams, got %d", len(views[0].Teams))
	}
}

func TestGameListStateFilter(t *testing.T) {
	router, _, svc := newTestRouter(t)
	seedGame(t, svc, "alice")

	w := get(t, router, "/api/games?state=IN_PROGRESS")
	var views []gameView
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("no games should be in progress, got %d", len(views))
	}
}

func TestGameDetail(t *testing.T) {
	router, _, svc := newTestRouter(t)
	id := seedGame(t, svc, "alice")

	w := get(t, router, "/api/games/1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var view gameView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != id || view.Creator != "alice" || view.State != "WAITING" {
		t.Errorf("unexpected view %+v", view)
	}

	if w := get(t, router, "/api/games/999"); w.Code != http.StatusNotFound {
		t.Errorf("missing game status = %d, want 404", w.Code)
	}
	if w := get(t, router, "/api/games/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestPlayerList(t *testing.T) {
	router, _, svc := newTestRouter(t)
	seedGame(t, svc, "alice")
	if _, err := svc.GetOrCreatePlayer("u2", "zed"); err != nil {
		t.Fatalf("player: %v", err)
	}

	w := get(t, router, "/api/players")
	var views []playerView
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 players, got %d", len(views))
	}
	if views[0].Name != "alice" {
		t.Errorf("players should be name-ordered, got %+v", views)
	}
}
