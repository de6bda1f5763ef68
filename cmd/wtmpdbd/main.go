// Package main provides the entry point for wtmpdbd, the daemon that owns
// the session ledger and serves it over local sockets.
package main

import (
	"fmt"
	"os"

	"github.com/ganot/wtmpdb/internal/command"
)

func main() {
	app := command.DaemonApp()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
