package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
)

const ctimeLayout = "Mon Jan _2 15:04:05 2006"

// BootCommand records the system boot.
func BootCommand() *cli.Command {
	return &cli.Command{
		Name:  "boot",
		Usage: "Write the system boot time into the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "soft-reboot",
				Usage: "Record a soft reboot stamped with the current time",
			},
			&cli.DurationFlag{
				Name:  "max-boot-age",
				Usage: "Treat a boot older than this as a soft reboot (0 disables)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Don't print the soft reboot notice",
			},
		},
		Action: bootAction,
	}
}

func bootAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}

	now := time.Now()
	uptime, err := sinceBoot()
	if err != nil {
		return fmt.Errorf("read boot clock: %w", err)
	}
	bootTime := now.Add(-uptime)

	soft := c.Bool("soft-reboot")
	if maxAge := c.Duration("max-boot-age"); !soft && maxAge > 0 && uptime > maxAge {
		if !c.Bool("quiet") {
			fmt.Fprintln(c.App.Writer, "Boot time too far in the past, using current time:")
			fmt.Fprintf(c.App.Writer, "Boot time: %s\n", bootTime.Format(ctimeLayout))
			fmt.Fprintf(c.App.Writer, "Current time: %s\n", now.Format(ctimeLayout))
		}
		soft = true
	}
	if soft {
		bootTime = now
	}

	release, err := kernelRelease()
	if err != nil {
		GetEnv(c).Logger.Warn("kernel release unavailable", "error", err)
	}

	ledger := openLedger(c)
	defer ledger.Close()

	_, err = wtmp.NewService(ledger, GetEnv(c).Logger).Boot(c.Context, bootTime, soft, release)
	return err
}

// BootTimeCommand prints the last recorded boot.
func BootTimeCommand() *cli.Command {
	return &cli.Command{
		Name:   "boottime",
		Usage:  "Print the time of the last system boot",
		Action: bootTimeAction,
	}
}

func bootTimeAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}

	ledger := openLedger(c)
	defer ledger.Close()

	boot, err := ledger.BootTime(c.Context)
	if errors.Is(err, repository.ErrNotFound) {
		return errors.New("no boot entry found")
	}
	if err != nil {
		return fmt.Errorf("read boot time: %w", err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "system boot %s\n", boot.Time().Local().Format(ctimeLayout))
	return err
}

// ShutdownCommand closes the boot entry.
func ShutdownCommand() *cli.Command {
	return &cli.Command{
		Name:   "shutdown",
		Usage:  "Write the system shutdown time into the database",
		Action: shutdownAction,
	}
}

func shutdownAction(c *cli.Context) error {
	if err := noArgs(c); err != nil {
		return err
	}

	ledger := openLedger(c)
	defer ledger.Close()

	return wtmp.NewService(ledger, GetEnv(c).Logger).Shutdown(c.Context)
}
