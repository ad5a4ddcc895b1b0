// Package models defines the GORM models persisted by scrimbot.
package models

import "time"

// Game states. A game is created WAITING, moves to IN_PROGRESS on start,
// and is deleted outright on cancel. FINISHED is declared for result
// recording but no flow transitions into it yet.
const (
	StateWaiting    = "WAITING"
	StateInProgress = "IN_PROGRESS"
	StateFinished   = "FINISHED"
	StateCancelled  = "CANCELLED"
)

// PoolTeam is the team number of the unassigned/holding pool. Numbered
// play teams start at 1.
const PoolTeam = 0

// Player maps a Discord user to the internal identity used as a foreign
// key target. Created lazily on first reference.
type Player struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DiscordID string `gorm:"size:32;uniqueIndex;not null"`
	Name      string `gorm:"size:64"`
	CreatedAt time.Time
}

// Platform is a seeded lookup row (PC, PS4, XBOX).
type Platform struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:16;uniqueIndex;not null"`
}

// Mode is a seeded lookup row mirroring the static mode catalog.
type Mode struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Key  string `gorm:"size:32;uniqueIndex;not null"`
	Name string `gorm:"size:64;uniqueIndex;not null"`
}

// Game is the core aggregate. Identity (creator, platform, mode) is
// immutable after creation; only state, timestamps, and the external
// Discord references mutate afterwards.
type Game struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	CreatorID  uint   `gorm:"not null;index"`
	State      string `gorm:"size:16;default:WAITING;index"`
	PlatformID uint   `gorm:"not null"`
	ModeID     uint   `gorm:"not null"`

	Description string `gorm:"type:text"`

	// External Discord references, empty until the corresponding message
	// or channel has been created.
	SignupMessageID string `gorm:"size:32;index"`
	LobbyMessageID  string `gorm:"size:32;index"`
	ChannelID       string `gorm:"size:32;index"`

	TeamsAvailable bool `gorm:"default:false"`
	RandomizeTeams bool `gorm:"default:false"`

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Creator  Player   `gorm:"foreignKey:CreatorID"`
	Platform Platform `gorm:"foreignKey:PlatformID"`
	Mode     Mode     `gorm:"foreignKey:ModeID"`
	Teams    []Team   `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

// Team belongs to exactly one Game. Number 0 is the holding pool; its
// Size holds the overall player cap. Membership is a set: unique,
// unordered, at most Size players.
type Team struct {
	ID     uint `gorm:"primaryKey;autoIncrement"`
	GameID uint `gorm:"not null;index:idx_game_team,unique"`
	Number int  `gorm:"not null;index:idx_game_team,unique"`
	Size   int  `gorm:"not null"`

	Players []Player `gorm:"many2many:team_players;constraint:OnDelete:CASCADE"`
}

// Property is a key-value configuration row read at runtime (games
// category name, announcement message reference, ...).
type Property struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"size:255"`
	UpdatedAt time.Time
}

// Property keys used by the bot.
const (
	PropGamesCategory   = "GAMES_CATEGORY_NAME"
	PropCreateChannel   = "CREATE_GAME_CHANNEL"
	PropJoinChannel     = "JOIN_GAME_CHANNEL"
	PropCreateMessageID = "CREATE_GAME_MESSAGE_ID"
)
