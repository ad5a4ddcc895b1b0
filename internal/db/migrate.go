package db

import (
	"errors"
	"fmt"

	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/modes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Player{},
		&models.Platform{},
		&models.Mode{},
		&models.Game{},
		&models.Team{},
		&models.Property{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// platformNames are the seeded platform lookup rows.
var platformNames = []string{"PC", "PS4", "XBOX"}

// Seed upserts the platform rows, the mode catalog, and the default
// properties derived from configuration. Safe to run on every startup.
func Seed(db *gorm.DB, cfg *config.Config) error {
	for _, name := range platformNames {
		p := models.Platform{Name: name}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&p)
		if result.Error != nil {
			return fmt.Errorf("db: seed platform %q: %w", name, result.Error)
		}
	}

	for _, gm := range modes.All() {
		m := models.Mode{Key: gm.Key, Name: gm.Name}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&m)
		if result.Error != nil {
			return fmt.Errorf("db: seed mode %q: %w", gm.Key, result.Error)
		}
	}

	props := map[string]string{
		models.PropGamesCategory: cfg.Guild.GamesCategory,
		models.PropCreateChannel: cfg.Guild.CreateGameChannel,
		models.PropJoinChannel:   cfg.Guild.JoinChannel,
	}
	for key, value := range props {
		prop := models.Property{Key: key, Value: value}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&prop)
		if result.Error != nil {
			return fmt.Errorf("db: seed property %q: %w", key, result.Error)
		}
	}

	return nil
}

// GetProperty reads a property value, returning "" when the key is absent.
func GetProperty(db *gorm.DB, key string) (string, error) {
	var prop models.Property
	err := db.First(&prop, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db: get property %q: %w", key, err)
	}
	return prop.Value, nil
}

// SetProperty writes a property value, inserting or updating as needed.
func SetProperty(db *gorm.DB, key, value string) error {
	prop := models.Property{Key: key, Value: value}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&prop)
	if result.Error != nil {
		return fmt.Errorf("db: set property %q: %w", key, result.Error)
	}
	return nil
}
