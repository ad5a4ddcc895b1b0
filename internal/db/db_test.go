package db

import (
	"testing"

	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/models"
	"github.com/mrno/scrimbot/internal/modes"
)

func testConfig() *config.Config {
	cfg, err := config.Parse([]byte(`
bot:
  token: test-token
guild:
  id: "1"
  create_game_channel: "10"
  join_channel: "20"
  games_category: Scrims
database:
  driver: sqlite
  path: ":memory:"
`))
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestConnect_Sqlite(t *testing.T) {
	cfg := testConfig()
	gdb, err := Connect(cfg.Database)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 3306, Name: "scrimbot"})
	want := "root@tcp(127.0.0.1:3306)/scrimbot?parseTime=true"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}

func TestSeed(t *testing.T) {
	cfg := testConfig()
	gdb, err := Connect(cfg.Database)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := Seed(gdb, cfg); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// Seeding twice must be a no-op, not a duplicate-key failure.
	if err := Seed(gdb, cfg); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var platforms int64
	gdb.Model(&models.Platform{}).Count(&platforms)
	if platforms != 3 {
		t.Errorf("platform rows = %d, want 3", platforms)
	}

	var modeRows int64
	gdb.Model(&models.Mode{}).Count(&modeRows)
	if int(modeRows) != len(modes.All()) {
		t.Errorf("mode rows = %d, want %d", modeRows, len(modes.All()))
	}

	category, err := GetProperty(gdb, models.PropGamesCategory)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if category != "Scrims" {
		t.Errorf("games category property = %q, want Scrims", category)
	}
}

func TestProperties(t *testing.T) {
	cfg := testConfig()
	gdb, err := Connect(cfg.Database)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	got, err := GetProperty(gdb, "missing")
	if err != nil || got != "" {
		t.Fatalf("GetProperty(missing) = %q, %v; want empty, nil", got, err)
	}

	if err := SetProperty(gdb, models.PropCreateMessageID, "555"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := SetProperty(gdb, models.PropCreateMessageID, "556"); err != nil {
		t.Fatalf("SetProperty update: %v", err)
	}
	got, err = GetProperty(gdb, models.PropCreateMessageID)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if got != "556" {
		t.Errorf("property = %q, want 556", got)
	}
}
