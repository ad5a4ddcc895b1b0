package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/mrno/scrimbot/internal/config"
	"github.com/mrno/scrimbot/internal/lobby"
	"github.com/mrno/scrimbot/internal/sequence"
)

// Daemon is the main bot process. It connects a Gateway, pumps inbound
// events through the Router, and runs the digest scheduler.
type Daemon struct {
	db  *gorm.DB
	cfg *config.Config
	gw  Gateway
	out io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Gateway Gateway
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("bot: gateway is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:  opts.DB,
		cfg: opts.Config,
		gw:  opts.Gateway,
		out: out,
	}, nil
}

// Run starts the bot. It connects the gateway, builds all subsystems
// (lobby service, sequence registry, command handler, router, digest),
// and blocks until the context is cancelled. On shutdown it closes the
// gateway gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Scrimbot connecting...\n")
	if err := d.gw.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}

	svc, err := lobby.NewService(d.db)
	if err != nil {
		d.gw.Close()
		return fmt.Errorf("bot: build lobby service: %w", err)
	}

	registry, err := sequence.NewRegistry(d.gw)
	if err != nil {
		d.gw.Close()
		return fmt.Errorf("bot: build registry: %w", err)
	}

	flowDeps := FlowDeps{
		Gateway:       d.gw,
		Lobby:         svc,
		DB:            d.db,
		JoinChannelID: d.cfg.Guild.JoinChannel,
		GamesCategory: d.cfg.Guild.GamesCategory,
		MaxTeams:      d.cfg.Limits.MaxTeams,
		MaxPlayers:    d.cfg.Limits.MaxPlayers,
	}

	commands, err := NewCommandHandler(CommandHandlerOpts{
		Gateway:       d.gw,
		Lobby:         svc,
		Registry:      registry,
		FlowDeps:      flowDeps,
		Prefix:        d.cfg.Bot.CommandPrefix,
		CreateChannel: d.cfg.Guild.CreateGameChannel,
	})
	if err != nil {
		d.gw.Close()
		return fmt.Errorf("bot: build command handler: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		Gateway:  d.gw,
		Lobby:    svc,
		Registry: registry,
		Commands: commands,
		FlowDeps: flowDeps,
	})
	if err != nil {
		d.gw.Close()
		return fmt.Errorf("bot: build router: %w", err)
	}

	inbound, err := d.gw.Listen(ctx)
	if err != nil {
		d.gw.Close()
		return fmt.Errorf("bot: listen: %w", err)
	}

	if d.cfg.Digest.Enabled {
		digest, err := NewDigest(d.gw, svc, d.cfg.Guild.JoinChannel, d.cfg.Digest.Cron)
		if err != nil {
			log.Printf("bot: digest disabled: %v", err)
		} else {
			go digest.Run(ctx)
		}
	}

	fmt.Fprintf(d.out, "Scrimbot online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Scrimbot shutting down...\n")
			if err := d.gw.Close(); err != nil {
				log.Printf("bot: close gateway: %v", err)
			}
			fmt.Fprintf(d.out, "Scrimbot stopped\n")
			return nil

		case ev, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Scrimbot inbound channel closed\n")
				return nil
			}
			router.Route(ctx, ev)
		}
	}
}
