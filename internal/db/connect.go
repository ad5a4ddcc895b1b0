// Package db opens the scrimbot database and manages schema and seed data.
package db

import (
	"fmt"

	"github.com/mrno/scrimbot/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from database configuration.
func DSN(dc config.DatabaseConfig) string {
	auth := dc.User
	if dc.Pass != "" {
		auth += ":" + dc.Pass
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", auth, dc.Host, dc.Port, dc.Name)
}

// Connect opens a GORM connection using the configured driver. SQLite is
// the default single-process backend; MySQL is available for shared
// deployments.
func Connect(dc config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch dc.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dc.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", dc.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(dc)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", dc.Host, dc.Port, dc.Name, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", dc.Driver)
	}
}
