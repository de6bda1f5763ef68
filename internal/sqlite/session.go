package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
)

// SessionRepository implements wtmp.Ledger for SQLite
type SessionRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

const sessionColumns = `ID, Type, User, Login, Logout, TTY, RemoteHost, Service`

// Login appends a new session and returns its ID
func (r *SessionRepository) Login(ctx context.Context, req wtmp.LoginRequest) (int64, error) {
	if req.User == "" {
		return 0, fmt.Errorf("add_entry: %w: user name is empty", repository.ErrInvalidInput)
	}
	if !req.Type.Valid() {
		return 0, fmt.Errorf("add_entry: %w: unknown type %d", repository.ErrInvalidInput, req.Type)
	}

	id, err := r.insert(ctx, wtmp.Session{
		Type:       req.Type,
		User:       req.User,
		Login:      req.Login,
		TTY:        req.TTY,
		RemoteHost: req.RemoteHost,
		Service:    req.Service,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *SessionRepository) insert(ctx context.Context, sess wtmp.Session) (int64, error) {
	login, err := toColumn("login", sess.Login)
	if err != nil {
		return 0, fmt.Errorf("add_entry: %w", err)
	}
	var logout any
	if sess.Logout != nil {
		v, err := toColumn("logout", *sess.Logout)
		if err != nil {
			return 0, fmt.Errorf("add_entry: %w", err)
		}
		logout = v
	}

	query := `
		INSERT INTO wtmp (Type, User, Login, Logout, TTY, RemoteHost, Service)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		int64(sess.Type),
		sess.User,
		login,
		logout,
		nullString(sess.TTY),
		nullString(sess.RemoteHost),
		nullString(sess.Service),
	)
	if err != nil {
		return 0, storageError("add_entry", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageError("add_entry", err)
	}
	return id, nil
}

// Logout records the logout time of an open session
func (r *SessionRepository) Logout(ctx context.Context, id int64, logout wtmp.Usec) error {
	value, err := toColumn("logout", logout)
	if err != nil {
		return fmt.Errorf("update_logout: %w", err)
	}

	query := `UPDATE wtmp SET Logout = ? WHERE ID = ? AND Logout IS NULL`

	result, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return storageError("update_logout", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("update_logout", err)
	}
	if rowsAffected == 1 {
		return nil
	}
	if rowsAffected > 1 {
		return fmt.Errorf("update_logout: %w: expected 1, got %d", repository.ErrConflict, rowsAffected)
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM wtmp WHERE ID = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update_logout: entry %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return storageError("update_logout", err)
	}
	return fmt.Errorf("update_logout: %w: entry %d is already closed", repository.ErrConflict, id)
}

// FindOpen returns the ID of the newest open session on tty
func (r *SessionRepository) FindOpen(ctx context.Context, tty string) (int64, error) {
	query := `
		SELECT ID FROM wtmp
		WHERE TTY = ? AND Logout IS NULL
		ORDER BY Login DESC
		LIMIT 1
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, tty).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("search_id: open entry for tty '%s': %w", tty, repository.ErrNotFound)
	}
	if err != nil {
		return 0, storageError("search_id", err)
	}
	return id, nil
}

// ReadAll streams every session, newest login first. Each range runs a
// fresh query; breaking out of the loop closes the cursor. Writes to the
// same store must not be issued while ranging.
func (r *SessionRepository) ReadAll(ctx context.Context) iter.Seq2[wtmp.Session, error] {
	return func(yield func(wtmp.Session, error) bool) {
		query := `SELECT ` + sessionColumns + ` FROM wtmp ORDER BY Login DESC, Logout ASC`

		rows, err := r.db.QueryContext(ctx, query)
		if err != nil {
			yield(wtmp.Session{}, storageError("read_all", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				yield(wtmp.Session{}, fmt.Errorf("read_all: %w", err))
				return
			}
			if !yield(sess, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(wtmp.Session{}, storageError("read_all", err))
		}
	}
}

// BootTime returns the login time of the newest reboot entry
func (r *SessionRepository) BootTime(ctx context.Context) (wtmp.Usec, error) {
	query := `
		SELECT Login FROM wtmp
		WHERE User = ?
		ORDER BY Login DESC
		LIMIT 1
	`

	var login sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, wtmp.UserReboot).Scan(&login)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("search_boottime: boot time: %w", repository.ErrNotFound)
	}
	if err != nil {
		return 0, storageError("search_boottime", err)
	}
	value, err := fromColumn("login", login)
	if err != nil {
		return 0, fmt.Errorf("search_boottime: %w", err)
	}
	return value, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (wtmp.Session, error) {
	var (
		sess                     wtmp.Session
		typ                      int64
		login, logout            sql.NullInt64
		tty, remoteHost, service sql.NullString
	)
	if err := row.Scan(&sess.ID, &typ, &sess.User, &login, &logout, &tty, &remoteHost, &service); err != nil {
		return wtmp.Session{}, storageError("scan", err)
	}
	sess.Type = wtmp.Type(typ)

	value, err := fromColumn("login", login)
	if err != nil {
		return wtmp.Session{}, fmt.Errorf("entry %d: %w", sess.ID, err)
	}
	sess.Login = value

	if logout.Valid {
		value, err := fromColumn("logout", logout)
		if err != nil {
			return wtmp.Session{}, fmt.Errorf("entry %d: %w", sess.ID, err)
		}
		sess.Logout = &value
	}

	sess.TTY = tty.String
	sess.RemoteHost = remoteHost.String
	sess.Service = service.String
	return sess, nil
}

// toColumn rejects timestamps the signed INTEGER column cannot hold,
// including the Infinity sentinel.
func toColumn(field string, u wtmp.Usec) (int64, error) {
	if u.IsInfinity() || uint64(u) > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s time %d is not representable", repository.ErrInvalidInput, field, uint64(u))
	}
	return int64(u), nil
}

func fromColumn(field string, v sql.NullInt64) (wtmp.Usec, error) {
	if !v.Valid || v.Int64 < 0 {
		return 0, fmt.Errorf("%w: invalid numeric time entry for '%s'", repository.ErrInvalidInput, field)
	}
	return wtmp.Usec(v.Int64), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
