package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
)

const secondsPerDay = 86400

// ArchivePath derives the archive file name for a rotation at cutoff:
// <dir>/<base-without-ext>_<YYYYMMDD><ext>, using the local date.
func ArchivePath(path string, cutoff time.Time) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name, ext = base, ""
	}
	if ext == "" {
		ext = ".db"
	}
	return filepath.Join(dir, name+"_"+cutoff.Local().Format("20060102")+ext)
}

// Rotate moves every session with a login time at or before now minus days
// into the dated archive next to the live database. Each record is copied
// and then deleted by ID, so a retry after a failure only picks up records
// still present in the live store.
func (r *SessionRepository) Rotate(ctx context.Context, days int) (wtmp.RotateResult, error) {
	if days < 0 {
		return wtmp.RotateResult{}, fmt.Errorf("rotate: %w: negative days %d", repository.ErrInvalidInput, days)
	}
	if r.db.ReadOnly() {
		return wtmp.RotateResult{}, fmt.Errorf("rotate: %w: database opened read-only", repository.ErrStorage)
	}

	now := r.now()
	threshold := time.Unix(now.Unix()-int64(days)*secondsPerDay, int64(now.Nanosecond()))
	cutoff, err := toColumn("cutoff", wtmp.FromTime(threshold))
	if err != nil {
		return wtmp.RotateResult{}, fmt.Errorf("rotate: %w", err)
	}

	expired, err := r.selectExpired(ctx, cutoff)
	if err != nil {
		return wtmp.RotateResult{}, err
	}
	if len(expired) == 0 {
		return wtmp.RotateResult{}, nil
	}

	archivePath := ArchivePath(r.db.Path(), threshold)
	archive, err := New(archivePath, WithBusyTimeout(r.db.busyTimeout))
	if err != nil {
		return wtmp.RotateResult{}, fmt.Errorf("rotate: %w", err)
	}
	defer archive.Close()
	dest := NewSessionRepository(archive)

	result := wtmp.RotateResult{ArchivePath: archivePath}
	for _, sess := range expired {
		if _, err := dest.insert(ctx, sess); err != nil {
			return result, fmt.Errorf("rotate: export entry %d: %w", sess.ID, err)
		}
		if err := r.delete(ctx, sess.ID); err != nil {
			return result, fmt.Errorf("rotate: %w", err)
		}
		result.Entries++
	}

	return result, nil
}

func (r *SessionRepository) selectExpired(ctx context.Context, cutoff int64) ([]wtmp.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM wtmp WHERE Login <= ? ORDER BY ID`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, storageError("rotate", err)
	}
	defer rows.Close()

	var sessions []wtmp.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("rotate: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("rotate", err)
	}
	return sessions, nil
}

func (r *SessionRepository) delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wtmp WHERE ID = ?`, id)
	if err != nil {
		return storageError("delete_entry", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("delete_entry", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("delete_entry: %w: entry %d, expected 1 row, got %d", repository.ErrConflict, id, rowsAffected)
	}
	return nil
}
