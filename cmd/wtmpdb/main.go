// Package main provides the entry point for wtmpdb.
//
// wtmpdb records logins, logouts and system boots and lists them in the
// style of last(1).
package main

import (
	"fmt"
	"os"

	"github.com/ganot/wtmpdb/internal/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
