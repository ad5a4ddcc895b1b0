// Package config provides YAML-based configuration loading for scrimbot.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scrimbot configuration, loaded from scrimbot.yaml.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Guild     GuildConfig     `yaml:"guild"`
	Database  DatabaseConfig  `yaml:"database"`
	Digest    DigestConfig    `yaml:"digest"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// BotConfig holds Discord connection settings.
type BotConfig struct {
	Token         string `yaml:"token"`
	CommandPrefix string `yaml:"command_prefix"`
}

// GuildConfig identifies the guild and the well-known channels the bot uses.
type GuildConfig struct {
	ID                string `yaml:"id"`
	CreateGameChannel string `yaml:"create_game_channel"`
	JoinChannel       string `yaml:"join_channel"`
	GamesCategory     string `yaml:"games_category"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
}

// DigestConfig controls the scheduled open-lobby digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
}

// DashboardConfig controls the read-only HTTP dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LimitsConfig bounds user input during game creation.
type LimitsConfig struct {
	MaxTeams   int `yaml:"max_teams"`
	MaxPlayers int `yaml:"max_players"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = "!"
	}
	if c.Guild.GamesCategory == "" {
		c.Guild.GamesCategory = "Games"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "scrimbot.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "scrimbot"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 18 * * *"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Limits.MaxTeams == 0 {
		c.Limits.MaxTeams = 12
	}
	if c.Limits.MaxPlayers == 0 {
		c.Limits.MaxPlayers = 12
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Bot.Token == "" {
		errs = append(errs, "bot.token is required")
	}
	if c.Guild.ID == "" {
		errs = append(errs, "guild.id is required")
	}
	if c.Guild.CreateGameChannel == "" {
		errs = append(errs, "guild.create_game_channel is required")
	}
	if c.Guild.JoinChannel == "" {
		errs = append(errs, "guild.join_channel is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Limits.MaxTeams < 2 {
		errs = append(errs, "limits.max_teams must be at least 2")
	}
	if c.Limits.MaxPlayers < 2 {
		errs = append(errs, "limits.max_players must be at least 2")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
