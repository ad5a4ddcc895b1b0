// Package lobby implements the game/team consistency model: team
// capacity, player assignment, and game lifecycle transitions, persisted
// through GORM.
package lobby

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/modes"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to callers. Capacity and lifecycle rejections
// are explicit values, never panics; command handlers translate them into
// chat messages.
var (
	ErrNotFound          = errors.New("lobby: not found")
	ErrGameFull          = errors.New("lobby: game is full")
	ErrGameNotFull       = errors.New("lobby: game is not full")
	ErrNotWaiting        = errors.New("lobby: game is not waiting")
	ErrPlayersUnassigned = errors.New("lobby: not all players assigned to a team")
	ErrShortPool         = errors.New("lobby: not enough players to fill all teams")
)

// Service owns all game and team mutations. It holds the repository
// handle explicitly; there is no ambient database state.
type Service struct {
	db *gorm.DB
}

// NewService creates a Service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("lobby: db is required")
	}
	return &Service{db: db}, nil
}

// GetOrCreatePlayer resolves a Discord user to a Player row, creating it
// on first reference. The display name is refreshed on every lookup.
func (s *Service) GetOrCreatePlayer(discordID, name string) (*models.Player, error) {
	var player models.Player
	err := s.db.Where(models.Player{DiscordID: discordID}).
		Assign(models.Player{Name: name}).
		FirstOrCreate(&player).Error
	if err != nil {
		return nil, fmt.Errorf("lobby: get or create player %s: %w", discordID, err)
	}
	return &player, nil
}

// CreateGameOpts holds parameters for CreateGame.
type CreateGameOpts struct {
	Creator     *models.Player
	Platform    string // platform name, e.g. "PC"
	Mode        modes.GameMode
	PlayerCap   int // overrides Mode.PlayerCount for variable (FFA) modes
	Description string
}

// CreateGame creates a WAITING game: the pool team (number 0) sized to
// the overall player cap with the creator pre-seeded, plus one numbered
// team per entry in the mode's team-size list.
func (s *Service) CreateGame(opts CreateGameOpts) (*models.Game, error) {
	if opts.Creator == nil {
		return nil, fmt.Errorf("lobby: create game: creator is required")
	}

	playerCap := opts.Mode.PlayerCount
	if playerCap == 0 {
		playerCap = opts.PlayerCap
	}
	if playerCap < 1 {
		return nil, fmt.Errorf("lobby: create game: player cap %d is invalid", playerCap)
	}

	var platform models.Platform
	if err := s.db.First(&platform, "name = ?", opts.Platform).Error; err != nil {
		return nil, fmt.Errorf("lobby: resolve platform %q: %w", opts.Platform, err)
	}
	var mode models.Mode
	if err := s.db.First(&mode, "key = ?", opts.Mode.Key).Error; err != nil {
		return nil, fmt.Errorf("lobby: resolve mode %q: %w", opts.Mode.Key, err)
	}

	game := models.Game{
		CreatorID:      opts.Creator.ID,
		State:          models.StateWaiting,
		PlatformID:     platform.ID,
		ModeID:         mode.ID,
		Description:    opts.Description,
		TeamsAvailable: opts.Mode.Teams() > 0,
		RandomizeTeams: opts.Mode.Randomize,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return fmt.Errorf("create game row: %w", err)
		}

		pool := models.Team{GameID: game.ID, Number: models.PoolTeam, Size: playerCap}
		if err := tx.Create(&pool).Error; err != nil {
			return fmt.Errorf("create pool team: %w", err)
		}
		if err := tx.Model(&pool).Association("Players").Append(opts.Creator); err != nil {
			return fmt.Errorf("seed creator into pool: %w", err)
		}

		for i, size := range opts.Mode.TeamSizes {
			team := models.Team{GameID: game.ID, Number: i + 1, Size: size}
			if err := tx.Create(&team).Error; err != nil {
				return fmt.Errorf("create team %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lobby: create game: %w", err)
	}

	return s.GameByID(game.ID)
}

// loadGame fetches a fully populated game by a single where clause.
func (s *Service) loadGame(query string, arg interface{}) (*models.Game, error) {
	var game models.Game
	err := s.db.
		Preload("Teams", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
		Preload("Teams.Players").
		Preload("Creator").
		Preload("Platform").
		Preload("Mode").
		First(&game, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lobby: load game: %w", err)
	}
	return &game, nil
}

// GameByID returns the game with the given ID, or ErrNotFound.
func (s *Service) GameByID(id uint) (*models.Game, error) {
	return s.loadGame("id = ?", id)
}

// GameBySignupMessage resolves a game from its public join announcement.
func (s *Service) GameBySignupMessage(messageID string) (*models.Game, error) {
	return s.loadGame("signup_message_id = ?", messageID)
}

// GameByLobbyMessage resolves a game from its lobby summary message.
func (s *Service) GameByLobbyMessage(messageID string) (*models.Game, error) {
	return s.loadGame("lobby_message_id = ?", messageID)
}

// GameByChannel resolves a game from its dedicated text channel.
func (s *Service) GameByChannel(channelID string) (*models.Game, error) {
	return s.loadGame("channel_id = ?", channelID)
}

// GameRefs are the external Discord references attached to a game after
// its messages and channel have been created.
type GameRefs struct {
	SignupMessageID string
	LobbyMessageID  string
	ChannelID       string
}

// UpdateGameRefs applies the non-empty references to the game. This path
// never touches team or player data.
func (s *Service) UpdateGameRefs(gameID uint, refs GameRefs) error {
	updates := map[string]interface{}{}
	if refs.SignupMessageID != "" {
		updates["signup_message_id"] = refs.SignupMessageID
	}
	if refs.LobbyMessageID != "" {
		updates["lobby_message_id"] = refs.LobbyMessageID
	}
	if refs.ChannelID != "" {
		updates["channel_id"] = refs.ChannelID
	}
	if len(updates) == 0 {
		return nil
	}
	result := s.db.Model(&models.Game{}).Where("id = ?", gameID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("lobby: update game %d refs: %w", gameID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// memberCount returns the number of players across all of the game's
// teams. Self-assignment moves a player between teams, so the sum is the
// game's total membership.
func memberCount(game *models.Game) int {
	n := 0
	for _, t := range game.Teams {
		n += len(t.Players)
	}
	return n
}

// teamByNumber returns the team with the given number, or nil.
func teamByNumber(game *models.Game, number int) *models.Team {
	for i := range game.Teams {
		if game.Teams[i].Number == number {
			return &game.Teams[i]
		}
	}
	return nil
}

// teamOf returns the team currently holding the player, or nil.
func teamOf(game *models.Game, playerID uint) *models.Team {
	for i := range game.Teams {
		for _, p := range game.Teams[i].Players {
			if p.ID == playerID {
				return &game.Teams[i]
			}
		}
	}
	return nil
}

// AddPlayerToGame adds a player to the holding pool. Idempotent: a player
// already anywhere in the game is left untouched. Rejects with ErrGameFull
// when total membership has reached the pool capacity.
func (s *Service) AddPlayerToGame(gameID uint, player *models.Player) error {
	game, err := s.GameByID(gameID)
	if err != nil {
		return err
	}
	if teamOf(game, player.ID) != nil {
		return nil
	}
	pool := teamByNumber(game, models.PoolTeam)
	if pool == nil {
		return fmt.Errorf("lobby: game %d has no pool team", gameID)
	}
	if memberCount(game) >= pool.Size {
		return ErrGameFull
	}
	if err := s.db.Model(pool).Association("Players").Append(player); err != nil {
		return fmt.Errorf("lobby: add player %d to game %d: %w", player.ID, gameID, err)
	}
	return nil
}

// AddPlayerToTeam moves a player from wherever they are (normally the
// pool) onto the numbered team. Returns false when the team number is
// invalid or the team is already at capacity; adding a player to a team
// they are already on is an idempotent success.
func (s *Service) AddPlayerToTeam(gameID uint, teamNumber int, player *models.Player) (bool, error) {
	if teamNumber < 1 {
		return false, nil
	}
	game, err := s.GameByID(gameID)
	if err != nil {
		return false, err
	}
	team := teamByNumber(game, teamNumber)
	if team == nil {
		return false, nil
	}

	current := teamOf(game, player.ID)
	if current != nil && current.Number == teamNumber {
		return true, nil
	}
	if len(team.Players) >= team.Size {
		return false, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if current != nil {
			if err := tx.Model(current).Association("Players").Delete(player); err != nil {
				return fmt.Errorf("remove from team %d: %w", current.Number, err)
			}
		}
		if err := tx.Model(team).Association("Players").Append(player); err != nil {
			return fmt.Errorf("append to team %d: %w", teamNumber, err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lobby: assign player %d to team %d: %w", player.ID, teamNumber, err)
	}
	return true, nil
}

// RemovePlayerFromGame removes the player from whichever team currently
// holds them. Removing a player who is not in the game is a no-op.
func (s *Service) RemovePlayerFromGame(gameID uint, player *models.Player) error {
	game, err := s.GameByID(gameID)
	if err != nil {
		return err
	}
	team := teamOf(game, player.ID)
	if team == nil {
		return nil
	}
	if err := s.db.Model(team).Association("Players").Delete(player); err != nil {
		return fmt.Errorf("lobby: remove player %d from game %d: %w", player.ID, gameID, err)
	}
	return nil
}

// StartGame transitions a full WAITING game to IN_PROGRESS. Random modes
// distribute the pool into the numbered teams respecting capacities;
// fixed modes require every player to have self-assigned already.
func (s *Service) StartGame(gameID uint) error {
	game, err := s.GameByID(gameID)
	if err != nil {
		return err
	}
	if game.State != models.StateWaiting {
		return ErrNotWaiting
	}
	pool := teamByNumber(game, models.PoolTeam)
	if pool == nil {
		return fmt.Errorf("lobby: game %d has no pool team", gameID)
	}
	if memberCount(game) != pool.Size {
		return ErrGameNotFull
	}

	if game.TeamsAvailable {
		if game.RandomizeTeams {
			if err := s.distributePool(game, pool); err != nil {
				return err
			}
		} else if len(pool.Players) > 0 {
			return ErrPlayersUnassigned
		}
	}

	now := time.Now()
	result := s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Updates(map[string]interface{}{"state": models.StateInProgress, "started_at": &now})
	if result.Error != nil {
		return fmt.Errorf("lobby: start game %d: %w", gameID, result.Error)
	}
	return nil
}

// distributePool randomly assigns every pool member to a numbered team,
// filling capacities in team order. The shortfall check reports failure
// instead of producing a silently partial assignment.
func (s *Service) distributePool(game *models.Game, pool *models.Team) error {
	need := 0
	for _, t := range game.Teams {
		if t.Number != models.PoolTeam {
			need += t.Size - len(t.Players)
		}
	}
	if len(pool.Players) < need {
		return ErrShortPool
	}

	shuffled := make([]models.Player, len(pool.Players))
	copy(shuffled, pool.Players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		idx := 0
		for i := range game.Teams {
			team := &game.Teams[i]
			if team.Number == models.PoolTeam {
				continue
			}
			// Append mutates team.Players too, so count the seats up
			// front instead of watching the slice grow.
			for seats := team.Size - len(team.Players); seats > 0 && idx < len(shuffled); seats-- {
				p := shuffled[idx]
				idx++
				if err := tx.Model(pool).Association("Players").Delete(&p); err != nil {
					return fmt.Errorf("lobby: drain pool: %w", err)
				}
				if err := tx.Model(team).Association("Players").Append(&p); err != nil {
					return fmt.Errorf("lobby: fill team %d: %w", team.Number, err)
				}
			}
		}
		return nil
	})
}

// DeleteGame removes the game, its teams, and all memberships. Creator
// gating and external channel/message cleanup are the caller's job.
func (s *Service) DeleteGame(gameID uint) error {
	game, err := s.GameByID(gameID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range game.Teams {
			if err := tx.Model(&game.Teams[i]).Association("Players").Clear(); err != nil {
				return fmt.Errorf("lobby: clear team %d members: %w", game.Teams[i].Number, err)
			}
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&models.Team{}).Error; err != nil {
			return fmt.Errorf("lobby: delete teams: %w", err)
		}
		if err := tx.Delete(&models.Game{}, gameID).Error; err != nil {
			return fmt.Errorf("lobby: delete game %d: %w", gameID, err)
		}
		return nil
	})
}

// WaitingGames lists all WAITING games, oldest first. Used by the digest
// and the dashboard.
func (s *Service) WaitingGames() ([]models.Game, error) {
	var games []models.Game
	err := s.db.
		Preload("Teams", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
		Preload("Teams.Players").
		Preload("Creator").
		Preload("Platform").
		Preload("Mode").
		Where("state = ?", models.StateWaiting).
		Order("created_at").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("lobby: list waiting games: %w", err)
	}
	return games, nil
}
