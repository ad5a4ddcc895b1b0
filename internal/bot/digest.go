package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// Digest posts a periodic summary of open games to the join channel so
// players browsing for a match see everything still waiting on players.
type Digest struct {
	gw        Gateway
	svc       *lobby.Service
	channelID string
	cronExpr  string
}

// NewDigest creates a Digest. The cron expression uses 5 fields.
func NewDigest(gw Gateway, svc *lobby.Service, channelID, cronExpr string) (*Digest, error) {
	if gw == nil {
		return nil, fmt.Errorf("bot: digest: gateway is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("bot: digest: lobby is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("bot: digest: channel is required")
	}
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return nil, fmt.Errorf("bot: digest: parse cron %q: %w", cronExpr, err)
	}
	return &Digest{gw: gw, svc: svc, channelID: channelID, cronExpr: cronExpr}, nil
}

// Run fires the digest on its cron schedule until the context is done.
func (dg *Digest) Run(ctx context.Context) {
	d := nextCronDuration(dg.cronExpr)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(timer):
			dg.fire(ctx)
			if d := nextCronDuration(dg.cronExpr); d > 0 {
				timer.Reset(d)
			} else {
				return
			}
		}
	}
}

// fire posts one digest. No open games means no post.
func (dg *Digest) fire(ctx context.Context) {
	embed, err := dg.Build()
	if err != nil {
		log.Printf("bot: build digest: %v", err)
		return
	}
	if embed == nil {
		return
	}
	if _, err := dg.gw.SendChannel(ctx, dg.channelID, Outbound{Embed: embed}); err != nil {
		log.Printf("bot: post digest: %v", err)
	}
}

// Build assembles the digest embed, or nil when no games are waiting.
func (dg *Digest) Build() (*Embed, error) {
	games, err := dg.svc.WaitingGames()
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}

	embed := &Embed{
		Title: fmt.Sprintf("📋 %d game(s) looking for players", len(games)),
		Color: colorScrim,
	}
	for _, game := range games {
		var seats, members int
		for _, team := range game.Teams {
			if team.Number == models.PoolTeam {
				seats = team.Size
			}
			members += len(team.Players)
		}
		lines := []string{
			fmt.Sprintf("Mode: %s", game.Mode.Name),
			fmt.Sprintf("Platform: %s", game.Platform.Name),
			fmt.Sprintf("Players: %d/%d", members, seats),
		}
		if game.Description != "" {
			lines = append(lines, game.Description)
		}
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  fmt.Sprintf("Game %d", game.ID),
			Value: strings.Join(lines, "\n"),
		})
	}
	return embed, nil
}
