package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/mrno/scrimbot/internal/bot"
	"github.com/mrno/scrimbot/internal/bot/discord"
	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/dashboard"
	"github.com/mrno/scrimbot/internal/db"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scrimbot daemon",
		Long:  "Connects to Discord, listens for commands and reactions, and manages game lobbies.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scrimbot.yaml", "path to scrimbot config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.Seed(gormDB, cfg); err != nil {
		return err
	}

	gateway, err := discord.New(discord.Opts{
		BotToken: cfg.Bot.Token,
		GuildID:  cfg.Guild.ID,
	})
	if err != nil {
		return err
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		DB:      gormDB,
		Config:  cfg,
		Gateway: gateway,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  cmd.OutOrStdout(),
			})
			if err != nil {
				log.Printf("dashboard: %v", err)
			}
		}()
	}

	return daemon.Run(ctx)
}
