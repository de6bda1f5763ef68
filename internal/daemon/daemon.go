// Package daemon serves the session ledger over two Unix sockets: a reader
// socket anyone may query and a writer socket reserved for root.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/transport"
)

// DefaultSocketDir is where the daemon creates its sockets.
const DefaultSocketDir = "/run/wtmpdb"

const shutdownTimeout = 5 * time.Second

// Config controls a daemon instance.
type Config struct {
	SocketDir       string
	IdleTimeout     time.Duration
	Debug           bool
	MetricsTextfile string
	MetricsInterval time.Duration
}

// Daemon owns the reader and writer sockets.
type Daemon struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	handler *Handler

	reader *transport.Server
	writer *transport.Server

	lastActivity atomic.Int64
	quit         chan struct{}
	quitOnce     sync.Once
}

// New creates a daemon serving ledger.
func New(cfg Config, ledger wtmp.Ledger, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SocketDir == "" {
		cfg.SocketDir = DefaultSocketDir
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(),
		quit:    make(chan struct{}),
	}
	d.handler = NewHandler(ledger, logger, d.metrics)
	d.handler.debug = cfg.Debug
	d.handler.quit = d.Stop
	d.handler.touch = d.touch
	d.touch()

	d.reader = transport.NewServer(filepath.Join(cfg.SocketDir, ReaderSocket), 0o666, d.handler.ForSocket(ReaderSocket, false), logger)
	d.writer = transport.NewServer(filepath.Join(cfg.SocketDir, WriterSocket), 0o600, d.handler.ForSocket(WriterSocket, true), logger)
	return d
}

// Metrics returns the daemon metrics.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// Listen creates the socket directory and binds both sockets.
func (d *Daemon) Listen() error {
	if err := os.MkdirAll(d.cfg.SocketDir, 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := d.reader.Listen(); err != nil {
		return err
	}
	if err := d.writer.Listen(); err != nil {
		_ = d.reader.Shutdown(context.Background())
		return err
	}
	return nil
}

// Run serves requests until ctx is done, Quit is received or the idle
// timeout expires. Listen must have succeeded first.
func (d *Daemon) Run(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	for _, srv := range []*transport.Server{d.reader, d.writer} {
		go func() {
			errCh <- srv.Serve(serveCtx)
		}()
	}

	d.logger.Info("daemon started",
		"socket_dir", d.cfg.SocketDir,
		"idle_timeout", d.cfg.IdleTimeout,
		"debug", d.cfg.Debug,
	)

	var idle <-chan time.Time
	if d.cfg.IdleTimeout > 0 {
		ticker := time.NewTicker(idleCheckInterval(d.cfg.IdleTimeout))
		defer ticker.Stop()
		idle = ticker.C
	}
	var flush <-chan time.Time
	if d.cfg.MetricsTextfile != "" && d.cfg.MetricsInterval > 0 {
		ticker := time.NewTicker(d.cfg.MetricsInterval)
		defer ticker.Stop()
		flush = ticker.C
	}

	var serveErr error
loop:
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down", "reason", "signal")
			break loop
		case <-d.quit:
			d.logger.Info("shutting down", "reason", "quit")
			break loop
		case <-idle:
			if d.idleFor() >= d.cfg.IdleTimeout {
				d.logger.Info("shutting down", "reason", "idle", "idle_timeout", d.cfg.IdleTimeout)
				break loop
			}
		case <-flush:
			d.writeMetrics()
		case err := <-errCh:
			if err != nil {
				serveErr = err
				d.logger.Error("socket server failed", "error", err)
				break loop
			}
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	err := errors.Join(
		serveErr,
		d.reader.Shutdown(shutdownCtx),
		d.writer.Shutdown(shutdownCtx),
	)
	d.writeMetrics()
	return err
}

// Stop asks a running daemon to shut down.
func (d *Daemon) Stop() {
	d.quitOnce.Do(func() { close(d.quit) })
}

func (d *Daemon) touch() {
	d.lastActivity.Store(time.Now().UnixNano())
}

func (d *Daemon) idleFor() time.Duration {
	return time.Since(time.Unix(0, d.lastActivity.Load()))
}

func (d *Daemon) writeMetrics() {
	if d.cfg.MetricsTextfile == "" {
		return
	}
	if err := d.metrics.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
		d.logger.Warn("write metrics textfile", "path", d.cfg.MetricsTextfile, "error", err)
	}
}

func idleCheckInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}
	return interval
}
