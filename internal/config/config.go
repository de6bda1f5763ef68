// Package config loads wtmpdb settings from defaults, an optional YAML
// file and WTMPDB_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WTMPDB_"

// PathEnv names the config file when no path is given explicitly.
const PathEnv = "WTMPDB_CONFIG_PATH"

// Config defines wtmpdb configuration.
type Config struct {
	DB     DBConfig     `koanf:"db"`
	Daemon DaemonConfig `koanf:"daemon"`
	Client ClientConfig `koanf:"client"`
	Log    LogConfig    `koanf:"log"`
}

type DBConfig struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

type DaemonConfig struct {
	SocketDir       string        `koanf:"socket_dir"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	Debug           bool          `koanf:"debug"`
	MetricsTextfile string        `koanf:"metrics_textfile"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

type ClientConfig struct {
	UseDaemon bool          `koanf:"use_daemon"`
	Timeout   time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	Path  string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"db.path":                 "/var/lib/wtmpdb/wtmp.db",
		"db.busy_timeout":         "5s",
		"daemon.socket_dir":       "/run/wtmpdb",
		"daemon.idle_timeout":     "0s",
		"daemon.debug":            false,
		"daemon.metrics_textfile": "",
		"daemon.metrics_interval": "1m",
		"client.use_daemon":       true,
		"client.timeout":          "10s",
		"log.level":               "info",
		"log.path":                "",
	}
}

// Load reads configuration. An empty path falls back to $WTMPDB_CONFIG_PATH;
// with neither set only defaults and the environment apply.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// WTMPDB_DAEMON_SOCKET_DIR -> daemon.socket_dir
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", ".", 1)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path must not be empty"))
	}
	if c.DB.BusyTimeout < 0 {
		errs = append(errs, errors.New("db.busy_timeout must not be negative"))
	}
	if c.Daemon.SocketDir == "" {
		errs = append(errs, errors.New("daemon.socket_dir must not be empty"))
	}
	if c.Daemon.IdleTimeout < 0 {
		errs = append(errs, errors.New("daemon.idle_timeout must not be negative"))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client.timeout must be positive"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// mapProvider feeds in-code defaults to koanf. Keys are dotted paths and
// are nested before loading.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
