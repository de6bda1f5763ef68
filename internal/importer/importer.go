// Package importer converts legacy utmp/wtmp log files into ledger sessions.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"golang.org/x/sys/unix"
)

// ErrEmptyPath is returned when no file was named.
var ErrEmptyPath = errors.New("no file to import")

// Stats summarises an import.
type Stats struct {
	Records int
	Opened  int
	Closed  int
}

// Importer replays legacy records into a ledger.
type Importer struct {
	ledger wtmp.Ledger
	logger *slog.Logger
}

// New creates an importer writing to ledger.
func New(ledger wtmp.Ledger, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Importer{ledger: ledger, logger: logger}
}

// Import reads the utmp-format file at path and imports its records. A
// trailing partial record is skipped with a warning.
func (im *Importer) Import(ctx context.Context, path string) (Stats, error) {
	records, err := im.readFile(path)
	if err != nil {
		return Stats{}, err
	}
	stats, err := im.ImportRecords(ctx, records)
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", path, err)
	}
	im.logger.Info("imported legacy log",
		"path", path,
		"records", stats.Records,
		"opened", stats.Opened,
		"closed", stats.Closed,
	)
	return stats, nil
}

func (im *Importer) readFile(path string) ([]Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}
	if spare := size % RecordSize; spare != 0 {
		im.logger.Warn("file is not a multiple of the utmp record size",
			"path", path,
			"spare_bytes", spare,
		)
	}
	entries := int(size / RecordSize)
	if entries == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	defer unix.Munmap(data)

	records := make([]Record, 0, entries)
	for i := range entries {
		rec, err := DecodeRecord(data[i*RecordSize : (i+1)*RecordSize])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ImportRecords replays records in order. Reboot entries open a boot
// session that the next shutdown entry closes; user processes open a
// session that the matching dead process closes. The first failure stops
// the import; sessions written before it stay in the ledger.
func (im *Importer) ImportRecords(ctx context.Context, records []Record) (Stats, error) {
	stats := Stats{Records: len(records)}
	ids := make([]int64, len(records))
	lastReboot := int64(-1)

	for row, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		switch rec.Type {
		case RunLevel, BootTime:
			if !rec.bootMarker() {
				continue
			}
			switch {
			case rec.User == wtmp.UserReboot:
				id, err := im.ledger.Login(ctx, wtmp.LoginRequest{
					Type:       wtmp.BootTime,
					User:       wtmp.UserReboot,
					Login:      rec.Time(),
					TTY:        wtmp.BootTTY,
					RemoteHost: rec.Host,
				})
				if err != nil {
					return stats, fmt.Errorf("record %d: %w", row, err)
				}
				lastReboot = id
				stats.Opened++
			case rec.User == wtmp.UserShutdown && lastReboot != -1:
				if err := im.ledger.Logout(ctx, lastReboot, rec.Time()); err != nil {
					return stats, fmt.Errorf("record %d: %w", row, err)
				}
				lastReboot = -1
				stats.Closed++
			}
		case UserProcess:
			id, err := im.ledger.Login(ctx, wtmp.LoginRequest{
				Type:       wtmp.UserProcess,
				User:       rec.User,
				Login:      rec.Time(),
				TTY:        rec.Line,
				RemoteHost: rec.Host,
			})
			if err != nil {
				return stats, fmt.Errorf("record %d: %w", row, err)
			}
			ids[row] = id
			stats.Opened++
		case DeadProcess:
			match := findLogin(records, row)
			if match < 0 || ids[match] <= 0 {
				continue
			}
			if err := im.ledger.Logout(ctx, ids[match], rec.Time()); err != nil {
				return stats, fmt.Errorf("record %d: %w", row, err)
			}
			ids[match] = 0
			stats.Closed++
		}
	}
	return stats, nil
}

// findLogin scans backwards from the dead process at row, stopping at the
// previous boot record, for the user process it ends: same pid when the pid
// is known, otherwise same line. It returns -1 when there is none.
func findLogin(records []Record, row int) int {
	dead := records[row]
	for i := row - 1; i >= 0; i-- {
		v := records[i]
		if v.Type == BootTime {
			break
		}
		if v.Type != UserProcess {
			continue
		}
		if (dead.PID != 0 && v.PID == dead.PID) || (dead.PID == 0 && v.Line == dead.Line) {
			return i
		}
	}
	return -1
}
