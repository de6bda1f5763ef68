// Package client routes ledger operations to the daemon when one is
// running and to the SQLite file otherwise.
package client

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/ganot/wtmpdb/internal/daemon"
	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/sqlite"
	"github.com/ganot/wtmpdb/internal/transport"
)

// DaemonPath as the database path forces every call through the daemon.
const DaemonPath = "daemon"

// Mode is the routing state of a Client.
type Mode int

const (
	// RemoteActive tries the daemon first and falls back on connectivity errors.
	RemoteActive Mode = iota
	// RemoteDisabled uses local storage after the daemon proved unreachable.
	RemoteDisabled
	// ForcedRemote always uses the daemon.
	ForcedRemote
	// ForcedLocal always uses the given database file.
	ForcedLocal
)

func (m Mode) String() string {
	switch m {
	case RemoteActive:
		return "remote-active"
	case RemoteDisabled:
		return "remote-disabled"
	case ForcedRemote:
		return "forced-remote"
	case ForcedLocal:
		return "forced-local"
	default:
		return "unknown"
	}
}

// Client implements wtmp.Ledger. Once the daemon is found unreachable the
// client stays on local storage for the rest of its life.
type Client struct {
	mu     sync.Mutex
	mode   Mode
	remote wtmp.Ledger
	local  wtmp.Ledger
	store  *localStore
	logger *slog.Logger
}

type settings struct {
	remote         wtmp.Ledger
	local          wtmp.Ledger
	logger         *slog.Logger
	remoteDisabled bool
	socketDir      string
	timeout        time.Duration
	fallbackPath   string
	sqliteOpts     []sqlite.Option
}

// Option configures a Client.
type Option func(*settings)

// WithRemote replaces the daemon back end.
func WithRemote(l wtmp.Ledger) Option {
	return func(s *settings) { s.remote = l }
}

// WithLocal replaces the local storage back end.
func WithLocal(l wtmp.Ledger) Option {
	return func(s *settings) { s.local = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithRemoteDisabled skips the daemon when no database path was given.
func WithRemoteDisabled() Option {
	return func(s *settings) { s.remoteDisabled = true }
}

// WithSocketDir sets the directory holding the daemon sockets.
func WithSocketDir(dir string) Option {
	return func(s *settings) { s.socketDir = dir }
}

// WithTimeout bounds each daemon call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithFallbackPath sets the database used when no path was given and the
// daemon is unreachable.
func WithFallbackPath(path string) Option {
	return func(s *settings) { s.fallbackPath = path }
}

// WithBusyTimeout sets the lock wait for local storage.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *settings) { s.sqliteOpts = append(s.sqliteOpts, sqlite.WithBusyTimeout(d)) }
}

// New creates a client. An empty dbPath tries the daemon first, DaemonPath
// forces the daemon and any other value forces that database file.
func New(dbPath string, opts ...Option) *Client {
	s := settings{
		socketDir:    daemon.DefaultSocketDir,
		timeout:      transport.DefaultTimeout,
		fallbackPath: sqlite.DefaultPath,
	}
	for _, opt := range opts {
		opt(&s)
	}

	c := &Client{logger: s.logger}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch dbPath {
	case "":
		c.mode = RemoteActive
		if s.remoteDisabled {
			c.mode = RemoteDisabled
		}
	case DaemonPath:
		c.mode = ForcedRemote
	default:
		c.mode = ForcedLocal
	}

	c.remote = s.remote
	if c.remote == nil {
		c.remote = daemon.NewRemoteLedger(s.socketDir, s.timeout)
	}
	c.local = s.local
	if c.local == nil {
		path := dbPath
		if c.mode != ForcedLocal {
			path = s.fallbackPath
		}
		c.store = newLocalStore(path, s.sqliteOpts...)
		c.local = c.store
	}
	return c
}

// Mode returns the current routing state.
func (c *Client) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Close releases local database handles.
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Client) disableRemote(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != RemoteActive {
		return
	}
	c.mode = RemoteDisabled
	c.logger.Info("daemon unavailable, using local database", "op", op, "error", err)
}

func call[T any](c *Client, op string, fn func(wtmp.Ledger) (T, error)) (T, error) {
	switch c.Mode() {
	case ForcedRemote:
		return fn(c.remote)
	case ForcedLocal, RemoteDisabled:
		return fn(c.local)
	}

	res, err := fn(c.remote)
	if err == nil || !transport.IsConnectivity(err) {
		return res, err
	}
	c.disableRemote(op, err)
	return fn(c.local)
}

func (c *Client) Login(ctx context.Context, req wtmp.LoginRequest) (int64, error) {
	return call(c, "login", func(l wtmp.Ledger) (int64, error) {
		return l.Login(ctx, req)
	})
}

func (c *Client) Logout(ctx context.Context, id int64, logout wtmp.Usec) error {
	_, err := call(c, "logout", func(l wtmp.Ledger) (struct{}, error) {
		return struct{}{}, l.Logout(ctx, id, logout)
	})
	return err
}

func (c *Client) FindOpen(ctx context.Context, tty string) (int64, error) {
	return call(c, "find_open", func(l wtmp.Ledger) (int64, error) {
		return l.FindOpen(ctx, tty)
	})
}

func (c *Client) BootTime(ctx context.Context) (wtmp.Usec, error) {
	return call(c, "boot_time", func(l wtmp.Ledger) (wtmp.Usec, error) {
		return l.BootTime(ctx)
	})
}

func (c *Client) Rotate(ctx context.Context, days int) (wtmp.RotateResult, error) {
	return call(c, "rotate", func(l wtmp.Ledger) (wtmp.RotateResult, error) {
		return l.Rotate(ctx, days)
	})
}

// ReadAll falls back only when the daemon fails before yielding anything.
func (c *Client) ReadAll(ctx context.Context) iter.Seq2[wtmp.Session, error] {
	return func(yield func(wtmp.Session, error) bool) {
		switch c.Mode() {
		case ForcedRemote:
			forward(c.remote.ReadAll(ctx), yield)
			return
		case ForcedLocal, RemoteDisabled:
			forward(c.local.ReadAll(ctx), yield)
			return
		}

		var fallbackErr error
		first := true
		for sess, err := range c.remote.ReadAll(ctx) {
			if first && err != nil && transport.IsConnectivity(err) {
				fallbackErr = err
				break
			}
			first = false
			if !yield(sess, err) {
				return
			}
		}
		if fallbackErr == nil {
			return
		}
		c.disableRemote("read_all", fallbackErr)
		forward(c.local.ReadAll(ctx), yield)
	}
}

func forward(seq iter.Seq2[wtmp.Session, error], yield func(wtmp.Session, error) bool) {
	for sess, err := range seq {
		if !yield(sess, err) {
			return
		}
	}
}
