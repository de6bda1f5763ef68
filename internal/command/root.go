// Package command provides the wtmpdb and wtmpdbd command lines.
package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/client"
	"github.com/ganot/wtmpdb/internal/config"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const envKey = "env"

// Env is the per-invocation state shared by commands.
type Env struct {
	Config config.Config
	Logger *slog.Logger
	closer io.Closer
}

// App creates the wtmpdb application.
func App() *cli.App {
	return &cli.App{
		Name:    "wtmpdb",
		Usage:   "Record and list logins, logouts and system boots",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LastCommand(),
			BootCommand(),
			BootTimeCommand(),
			ShutdownCommand(),
			LogCommand(),
			RotateCommand(),
			ImportCommand(),
			MCPCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Database file, or \"daemon\" to require the daemon (default: daemon, then the configured database)",
			EnvVars: []string{"WTMPDB_FILE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides configuration)",
		},
	}
}

func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	env := &Env{Config: cfg}
	logWriter := c.App.ErrWriter
	if logWriter == nil {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(logWriter, "log file error: %v\n", err)
		} else {
			logWriter = fileWriter
			env.closer = file
		}
	}
	env.Logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envKey] = env
	return nil
}

func teardown(c *cli.Context) error {
	if env, ok := c.App.Metadata[envKey].(*Env); ok && env.closer != nil {
		return env.closer.Close()
	}
	return nil
}

// GetEnv retrieves the invocation state from context.
func GetEnv(c *cli.Context) *Env {
	if env, ok := c.App.Metadata[envKey].(*Env); ok {
		return env
	}
	return &Env{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// openLedger creates the transport client for the --file flag.
func openLedger(c *cli.Context) *client.Client {
	env := GetEnv(c)
	opts := []client.Option{
		client.WithLogger(env.Logger),
		client.WithSocketDir(env.Config.Daemon.SocketDir),
		client.WithTimeout(env.Config.Client.Timeout),
		client.WithFallbackPath(env.Config.DB.Path),
		client.WithBusyTimeout(env.Config.DB.BusyTimeout),
	}
	if !env.Config.Client.UseDaemon {
		opts = append(opts, client.WithRemoteDisabled())
	}
	return client.New(c.String("file"), opts...)
}

// dbName is the ledger name shown in listings.
func dbName(c *cli.Context) string {
	if file := c.String("file"); file != "" && file != client.DaemonPath {
		return file
	}
	return "wtmpdb"
}

func noArgs(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", c.Args().First())
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
