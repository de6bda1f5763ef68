package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/mcp"
)

// MCPCommand serves the ledger read-only over MCP on stdin/stdout.
func MCPCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve the session ledger over the Model Context Protocol on stdio",
		Action: mcpAction,
	}
}

func mcpAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}
	logger := GetEnv(c).Logger

	ledger := openLedger(c)
	defer ledger.Close()

	server := mcp.NewServer(mcp.Config{
		Ledger:  ledger,
		Logger:  logger,
		Version: Version,
	})

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("starting stdio transport")
	// Run blocks until stdin closes or ctx is canceled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
