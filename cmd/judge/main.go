// Command judge is the officiating console a judge runs at the venue. It coordinates
// match claims with the other judges and relays results through the officiating server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/coordination"
	"github.com/Dosada05/tournament-officiating/feed"
	"github.com/Dosada05/tournament-officiating/presence"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "judge",
		Usage: "claim matches and report results for a tournament",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Usage: "officiating server base URL", EnvVars: []string{"OFFICIATING_SERVER_URL"}, Value: "http://localhost:8080"},
			&cli.IntFlag{Name: "tournament", Aliases: []string{"t"}, Usage: "tournament id", EnvVars: []string{"TOURNAMENT_ID"}, Required: true},
			&cli.StringFlag{Name: "name", Usage: "judge display name", EnvVars: []string{"JUDGE_NAME"}, Required: true},
			&cli.StringFlag{Name: "passcode", Usage: "venue passcode", EnvVars: []string{"JUDGE_PASSCODE"}, Required: true},
			&cli.StringFlag{Name: "nats", Usage: "NATS URL; presence and change feed go over NATS instead of the server websocket", EnvVars: []string{"NATS_URL"}},
			&cli.DurationFlag{Name: "poll", Usage: "tournament status poll interval", EnvVars: []string{"STATUS_POLL_INTERVAL"}, Value: 15 * time.Second},
			&cli.DurationFlag{Name: "presence-ttl", Usage: "how long a silent judge keeps its claims on NATS", Value: 30 * time.Second},
			&cli.BoolFlag{Name: "fast", Usage: "submit results without confirmation"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "judge:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := c.Context
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	serverURL := c.String("server")
	tournamentID := c.Int("tournament")

	session, err := authority.Login(ctx, nil, serverURL, c.String("name"), c.String("passcode"))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	self := presence.Identity{ID: session.Judge.ID, Name: session.Judge.Name}
	logger.Info("logged in", slog.String("judge_id", self.ID), slog.String("role", session.Role))

	relay := authority.NewRelayClient(serverURL, tournamentID, session.Token, nil)
	tournament, err := relay.Tournament(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}

	var nc *nats.Conn
	if natsURL := c.String("nats"); natsURL != "" {
		nc, err = nats.Connect(natsURL, nats.Name("judge-"+self.ID), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()
	}

	var channel presence.Channel
	if nc != nil {
		channel, err = presence.NewNATSChannel(ctx, nc, tournamentID, c.Duration("presence-ttl"), logger)
		if err != nil {
			return err
		}
	} else {
		wsURL, err := websocketURL(serverURL, tournamentID)
		if err != nil {
			return err
		}
		channel = presence.NewWSChannel(wsURL, session.Token, logger)
	}

	stateSync := coordination.NewStateSync(relay, relay, relay.Ref(), coordination.StateSyncOptions{
		Writer: relay,
		Logger: logger,
	})
	locks := coordination.NewLockCoordinator(channel, self, coordination.LockOptions{
		ArenaSlots: tournament.ArenaSlots,
		Logger:     logger,
		OnEvent: func(ev presence.Event) {
			if ev.Type == presence.EventTournamentChanged {
				stateSync.Trigger()
			}
		},
	})
	if err := locks.Start(ctx); err != nil {
		return fmt.Errorf("failed to join presence channel: %w", err)
	}
	defer locks.Stop()

	results := coordination.NewResultCoordinator(locks, relay, relay.Ref(), nil, coordination.ResultOptions{
		Logger:           logger,
		MutationsAllowed: stateSync.MutationsAllowed,
	})
	if _, err := results.Refresh(ctx); err != nil {
		logger.Warn("initial match fetch failed", slog.Any("error", err))
	}

	poller, err := coordination.NewPoller(stateSync, c.Duration("poll"), logger)
	if err != nil {
		return err
	}
	poller.Start()
	defer poller.Stop()

	if nc != nil {
		go func() {
			if err := stateSync.Follow(ctx, feed.NewNATSMirror(nc, logger), tournamentID); err != nil && ctx.Err() == nil {
				logger.Warn("change feed stopped", slog.Any("error", err))
			}
		}()
	}

	con, err := newConsole(os.Stdin, os.Stdout, locks, results, stateSync, c.Bool("fast"))
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ch := <-stateSync.Changes():
				if ch.From != "" {
					con.printf("\ntournament moved %s -> %s\n", ch.From, ch.To)
				}
			}
		}
	}()

	// Stdin reads do not observe ctx, so a signal must not wait for the next line.
	done := make(chan error, 1)
	go func() { done <- con.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// websocketURL maps http(s)://host to ws(s)://host/ws/tournaments/{id}.
func websocketURL(serverURL string, tournamentID int) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	return u.JoinPath("ws", "tournaments", fmt.Sprint(tournamentID)).String(), nil
}
