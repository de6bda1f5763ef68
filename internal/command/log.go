package command

import (
	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
)

// LogCommand opens or closes a user session, for login helpers that cannot
// link against the library.
func LogCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Record a login, or a logout when no user is given",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tty",
				Aliases:  []string{"l"},
				Usage:    "Terminal line of the session",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User logging in; omit to close the open session on the tty",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Remote host the user logged in from",
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "Service that created the session",
			},
		},
		Action: logAction,
	}
}

func logAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}

	ledger := openLedger(c)
	defer ledger.Close()

	_, err := wtmp.NewService(ledger, GetEnv(c).Logger).LogSession(c.Context,
		c.String("tty"), c.String("user"), c.String("host"), c.String("service"))
	return err
}
