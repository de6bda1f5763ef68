// Package mcp exposes the session ledger read-only over the Model Context
// Protocol.
package mcp

import (
	"io"
	"log/slog"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Config contains server configuration.
type Config struct {
	Ledger  wtmp.Ledger
	Logger  *slog.Logger
	Version string
}

// NewServer creates an MCP server with the ledger resources and tools.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "wtmpdb",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerResources(server, cfg.Ledger)
	registerTools(server, cfg.Ledger)

	server.AddReceivingMiddleware(trafficLogger{logger: cfg.Logger, direction: "inbound"}.middleware)
	server.AddSendingMiddleware(trafficLogger{logger: cfg.Logger, direction: "outbound"}.middleware)

	return server
}

const serverInstructions = `wtmpdb records logins, logouts and system boots in a session ledger.

Everything here is read-only:
- wtmpdb://sessions lists every session, newest first (JSON).
- wtmpdb://boottime is the time of the latest boot.
- The last tool filters the listing by user or tty and caps its length.
- The boot_time tool returns the latest boot time.

An open session has no logout time. Sessions older than a later boot that
were never closed are reported as "crash".
`
