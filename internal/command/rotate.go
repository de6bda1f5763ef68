package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// RotateCommand moves old sessions into a dated archive database.
func RotateCommand() *cli.Command {
	return &cli.Command{
		Name:  "rotate",
		Usage: "Move entries older than the given number of days into an archive",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Usage:   "Keep entries newer than DAYS days",
				Value:   60,
			},
		},
		Action: rotateAction,
	}
}

func rotateAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}
	days := c.Int("days")
	if days < 0 {
		return fmt.Errorf("invalid days: %d", days)
	}

	ledger := openLedger(c)
	defer ledger.Close()

	result, err := ledger.Rotate(c.Context, days)
	if err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	if result.Entries == 0 {
		_, err = fmt.Fprintln(c.App.Writer, "No old entries found")
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%d entries moved to %s\n", result.Entries, result.ArchivePath)
	return err
}
