package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/client"
	"github.com/ganot/wtmpdb/internal/daemon"
	"github.com/ganot/wtmpdb/internal/sqlite"
)

// DaemonApp creates the wtmpdbd application.
func DaemonApp() *cli.App {
	return &cli.App{
		Name:    "wtmpdbd",
		Usage:   "Serve the session ledger over local sockets",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags: append(globalFlags(),
			&cli.StringFlag{
				Name:    "socket-dir",
				Usage:   "Directory for the reader and writer sockets",
				EnvVars: []string{"WTMPDB_DAEMON_SOCKET_DIR"},
			},
			&cli.DurationFlag{
				Name:  "idle-timeout",
				Usage: "Exit after no request arrived for this long (0 disables)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Log every request and accept writes from any user",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Report whether a daemon is running and exit",
			},
			&cli.BoolFlag{
				Name:  "stop",
				Usage: "Ask a running daemon to exit",
			},
		),
		Before: daemonSetup,
		After:  teardown,
		Action: daemonAction,
	}
}

func daemonSetup(c *cli.Context) error {
	if c.Bool("debug") && c.String("log-level") == "" {
		if err := c.Set("log-level", "debug"); err != nil {
			return err
		}
	}
	if err := setup(c); err != nil {
		return err
	}

	cfg := &GetEnv(c).Config
	if file := c.String("file"); file != "" && file != client.DaemonPath {
		cfg.DB.Path = file
	}
	if dir := c.String("socket-dir"); dir != "" {
		cfg.Daemon.SocketDir = dir
	}
	if c.IsSet("idle-timeout") {
		cfg.Daemon.IdleTimeout = c.Duration("idle-timeout")
	}
	if c.Bool("debug") {
		cfg.Daemon.Debug = true
	}
	return cfg.Validate()
}

func daemonAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}
	env := GetEnv(c)
	cfg := env.Config

	switch {
	case c.Bool("status"):
		remote := daemon.NewRemoteLedger(cfg.Daemon.SocketDir, cfg.Client.Timeout)
		ping, err := remote.Ping(c.Context)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}
		_, err = fmt.Fprintf(c.App.Writer, "wtmpdbd %s running, pid %d\n", ping.Version, ping.PID)
		return err
	case c.Bool("stop"):
		remote := daemon.NewRemoteLedger(cfg.Daemon.SocketDir, cfg.Client.Timeout)
		return remote.Quit(c.Context)
	}

	db, err := sqlite.New(cfg.DB.Path, sqlite.WithBusyTimeout(cfg.DB.BusyTimeout))
	if err != nil {
		return err
	}
	defer db.Close()

	daemon.Version = Version
	d := daemon.New(daemon.Config{
		SocketDir:       cfg.Daemon.SocketDir,
		IdleTimeout:     cfg.Daemon.IdleTimeout,
		Debug:           cfg.Daemon.Debug,
		MetricsTextfile: cfg.Daemon.MetricsTextfile,
		MetricsInterval: cfg.Daemon.MetricsInterval,
	}, sqlite.NewSessionRepository(db), env.Logger)
	if err := d.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.Logger.Debug("database opened", "path", cfg.DB.Path, "pid", os.Getpid())
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
