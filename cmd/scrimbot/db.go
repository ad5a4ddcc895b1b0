package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the scrimbot database",
		Long:  "Migrates all tables and seeds platforms, the mode catalog, and configuration properties.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scrimbot.yaml", "path to scrimbot config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.Seed(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "Seeded platforms, modes, and properties")

	fmt.Fprintln(out, "\nScrimbot database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all tables and re-initialize the database",
		Long:  "Drops every scrimbot table, then migrates and seeds from scratch. All games and players are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scrimbot.yaml", "path to scrimbot config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, yes bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !yes {
		fmt.Fprint(out, "This drops ALL scrimbot data. Type 'yes' to continue: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	// The join table is not covered by the model list.
	tables := append(db.AllModels(), "team_players")
	if err := gormDB.Migrator().DropTable(tables...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	fmt.Fprintln(out, "Dropped all tables")

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.Seed(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "Database re-initialized.")
	return nil
}
