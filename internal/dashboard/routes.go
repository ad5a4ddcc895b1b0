package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
)

// gameView is the JSON shape of a game.
type gameView struct {
	ID          uint       `json:"id"`
	State       string     `json:"state"`
	Mode        string     `json:"mode"`
	Platform    string     `json:"platform"`
	Creator     string     `json:"creator"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Teams       []teamView `json:"teams"`
}

type teamView struct {
	Number  int      `json:"number"`
	Size    int      `json:"size"`
	Players []string `json:"players"`
}

type playerView struct {
	ID        uint   `json:"id"`
	DiscordID string `json:"discord_id"`
	Name      string `json:"name"`
}

func toGameView(g *models.Game) gameView {
	view := gameView{
		ID:          g.ID,
		State:       g.State,
		Mode:        g.Mode.Name,
		Platform:    g.Platform.Name,
		Creator:     g.Creator.Name,
		Description: g.Description,
		CreatedAt:   g.CreatedAt,
		StartedAt:   g.StartedAt,
	}
	for _, t := range g.Teams {
		tv := teamView{Number: t.Number, Size: t.Size, Players: []string{}}
		for _, p := range t.Players {
			tv.Players = append(tv.Players, p.Name)
		}
		view.Teams = append(view.Teams, tv)
	}
	return view
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, gdb *gorm.DB) error {
	svc, err := lobby.NewService(gdb)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/games", handleGameList(gdb))
	router.GET("/api/games/:id", handleGameDetail(svc))
	router.GET("/api/players", handlePlayerList(gdb))
	return nil
}

func handleGameList(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := gdb.
			Preload("Teams", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
			Preload("Teams.Players").
			Preload("Creator").
			Preload("Platform").
			Preload("Mode").
			Order("created_at")
		if state := c.Query("state"); state != "" {
			query = query.Where("state = ?", state)
		}

		var games []models.Game
		if err := query.Find(&games).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views := make([]gameView, 0, len(games))
		for i := range games {
			views = append(views, toGameView(&games[i]))
		}
		c.JSON(http.StatusOK, views)
	}
}

func handleGameDetail(svc *lobby.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			return
		}
		game, err := svc.GameByID(uint(id))
		if errors.Is(err, lobby.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toGameView(game))
	}
}

func handlePlayerList(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var players []models.Player
		if err := gdb.Order("name").Find(&players).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views := make([]playerView, 0, len(players))
		for _, p := range players {
			views = append(views, playerView{ID: p.ID, DiscordID: p.DiscordID, Name: p.Name})
		}
		c.JSON(http.StatusOK, views)
	}
}
