package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/importer"
)

// ImportCommand replays legacy wtmp files into the ledger.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import legacy wtmp log files",
		ArgsUsage: "FILE...",
		Action:    importAction,
	}
}

func importAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return importer.ErrEmptyPath
	}

	ledger := openLedger(c)
	defer ledger.Close()

	im := importer.New(ledger, GetEnv(c).Logger)
	var errs []error
	for _, path := range c.Args().Slice() {
		stats, err := im.Import(c.Context, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s: %d records, %d sessions opened, %d closed\n",
			path, stats.Records, stats.Opened, stats.Closed)
	}
	return errors.Join(errs...)
}
