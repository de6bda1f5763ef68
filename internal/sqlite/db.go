package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the system ledger location.
const DefaultPath = "/var/lib/wtmpdb/wtmp.db"

// DefaultBusyTimeout bounds how long a statement waits for the store lock.
const DefaultBusyTimeout = 5 * time.Second

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
	path        string
	readOnly    bool
	busyTimeout time.Duration
}

// Option configures how a database is opened.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout overrides DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// New opens the database at path for reading and writing. The parent
// directory is created first and the schema is created if absent.
func New(path string, opts ...Option) (*DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("open_database_rw: cannot create directory for %s: %w", path, err)
	}

	db, err := open(path, false, opts)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// NewReadOnly opens an existing database at path without write access.
func NewReadOnly(path string, opts ...Option) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, storageError("open_database_ro", fmt.Errorf("cannot open database (%s): %w", path, err))
	}
	return open(path, true, opts)
}

func open(path string, readOnly bool, opts []Option) (*DB, error) {
	o := options{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	op := "open_database_rw"
	if readOnly {
		op = "open_database_ro"
	}

	db, err := sql.Open("sqlite", dsn(path, readOnly, o.busyTimeout))
	if err != nil {
		return nil, storageError(op, fmt.Errorf("cannot open database (%s): %w", path, err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageError(op, fmt.Errorf("cannot open database (%s): %w", path, err))
	}

	return &DB{DB: db, path: path, readOnly: readOnly, busyTimeout: o.busyTimeout}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// ReadOnly reports whether db was opened without write access.
func (db *DB) ReadOnly() bool {
	return db.readOnly
}

const schema = `
CREATE TABLE IF NOT EXISTS wtmp(
    ID INTEGER PRIMARY KEY,
    Type INTEGER,
    User TEXT NOT NULL,
    Login INTEGER,
    Logout INTEGER,
    TTY TEXT,
    RemoteHost TEXT,
    Service TEXT
) STRICT;
`

// RunMigrations creates the wtmp table if it does not exist yet
func (db *DB) RunMigrations() error {
	if _, err := db.Exec(schema); err != nil {
		return storageError("create_schema", err)
	}
	return nil
}

// dsn builds a modernc.org/sqlite data source name. The busy timeout is
// passed as a pragma so every pooled connection picks it up.
func dsn(path string, readOnly bool, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	if readOnly {
		q.Set("mode", "ro")
	}
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: path}).EscapedPath(), RawQuery: q.Encode()}
	return u.String()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
