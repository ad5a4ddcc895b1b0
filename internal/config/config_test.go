package config

import (
	"strings"
	"testing"
)

const minimalYAML = `
bot:
  token: abc123
guild:
  id: "100"
  create_game_channel: "200"
  join_channel: "300"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bot.CommandPrefix != "!" {
		t.Errorf("default command prefix = %q, want !", cfg.Bot.CommandPrefix)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "scrimbot.db" {
		t.Errorf("default sqlite path = %q", cfg.Database.Path)
	}
	if cfg.Guild.GamesCategory != "Games" {
		t.Errorf("default games category = %q", cfg.Guild.GamesCategory)
	}
	if cfg.Limits.MaxTeams != 12 || cfg.Limits.MaxPlayers != 12 {
		t.Errorf("default limits = %d teams / %d players, want 12/12",
			cfg.Limits.MaxTeams, cfg.Limits.MaxPlayers)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("default dashboard port = %d, want 8080", cfg.Dashboard.Port)
	}
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := Parse([]byte("bot:\n  token: \"\"\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bot.token", "guild.id", "guild.create_game_channel", "guild.join_channel"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParse_BadDriver(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "database:\n  driver: postgres\n"))
	if err == nil || !strings.Contains(err.Error(), "database.driver") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestParse_Overrides(t *testing.T) {
	yaml := minimalYAML + `
database:
  driver: mysql
  host: db.local
  name: lobbies
limits:
  max_teams: 6
  max_players: 24
digest:
  enabled: true
  cron: "30 8 * * 1"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "db.local" {
		t.Errorf("mysql overrides not applied: %+v", cfg.Database)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("mysql default port = %d, want 3306", cfg.Database.Port)
	}
	if cfg.Limits.MaxTeams != 6 || cfg.Limits.MaxPlayers != 24 {
		t.Errorf("limit overrides not applied: %+v", cfg.Limits)
	}
	if !cfg.Digest.Enabled || cfg.Digest.Cron != "30 8 * * 1" {
		t.Errorf("digest overrides not applied: %+v", cfg.Digest)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("bot: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParse_LimitsTooSmall(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "limits:\n  max_teams: 1\n"))
	if err == nil || !strings.Contains(err.Error(), "max_teams") {
		t.Fatalf("expected max_teams validation error, got %v", err)
	}
}
