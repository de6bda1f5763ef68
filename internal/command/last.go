package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ganot/wtmpdb/internal/report"
)

// LastCommand lists sessions, newest first.
func LastCommand() *cli.Command {
	return &cli.Command{
		Name:      "last",
		Usage:     "Show a listing of last logged in users",
		ArgsUsage: "[user|tty...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Show only the last N entries",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: plain, json, yaml",
				Value:   string(report.Plain),
			},
			&cli.StringFlag{
				Name:    "since",
				Aliases: []string{"s"},
				Usage:   "Show sessions active since TIME",
			},
			&cli.StringFlag{
				Name:    "until",
				Aliases: []string{"t"},
				Usage:   "Show sessions active until TIME",
			},
			&cli.BoolFlag{
				Name:    "time-format-iso",
				Aliases: []string{"iso"},
				Usage:   "Print full timestamps in ISO 8601 format",
			},
		},
		Action: lastAction,
	}
}

func lastAction(c *cli.Context) error {
	format, err := report.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if c.Int("limit") < 0 {
		return fmt.Errorf("invalid limit: %d", c.Int("limit"))
	}

	now := time.Now()
	opts := report.Options{
		Format: format,
		Limit:  c.Int("limit"),
		Match:  c.Args().Slice(),
		ISO:    c.Bool("time-format-iso"),
		Name:   dbName(c),
	}
	if s := c.String("since"); s != "" {
		if opts.Since, err = parseTimeArg(s, now); err != nil {
			return fmt.Errorf("invalid since: %w", err)
		}
	}
	if s := c.String("until"); s != "" {
		if opts.Until, err = parseTimeArg(s, now); err != nil {
			return fmt.Errorf("invalid until: %w", err)
		}
	}

	ledger := openLedger(c)
	defer ledger.Close()

	return report.Write(c.App.Writer, ledger.ReadAll(c.Context), opts)
}

var timeArgLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
	"15:04",
	time.RFC3339,
}

// parseTimeArg accepts absolute timestamps in local time and the keywords
// now, today and yesterday. A bare time of day refers to today.
func parseTimeArg(s string, now time.Time) (time.Time, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(s) {
	case "now":
		return now, nil
	case "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	}
	for _, layout := range timeArgLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "2006") {
			t = time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, now.Location())
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
