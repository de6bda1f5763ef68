package client

import (
	"context"
	"iter"
	"sync"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/sqlite"
)

// localStore is a wtmp.Ledger over a SQLite file. Handles are opened on
// first use: reads use a read-only handle unless a read-write one is
// already open, writes use a read-write handle.
type localStore struct {
	path string
	opts []sqlite.Option

	mu sync.Mutex
	ro *sqlite.DB
	rw *sqlite.DB
}

func newLocalStore(path string, opts ...sqlite.Option) *localStore {
	return &localStore{path: path, opts: opts}
}

func (s *localStore) reader() (*sqlite.SessionRepository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rw != nil {
		return sqlite.NewSessionRepository(s.rw), nil
	}
	if s.ro == nil {
		db, err := sqlite.NewReadOnly(s.path, s.opts...)
		if err != nil {
			return nil, err
		}
		s.ro = db
	}
	return sqlite.NewSessionRepository(s.ro), nil
}

func (s *localStore) writer() (*sqlite.SessionRepository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rw == nil {
		db, err := sqlite.New(s.path, s.opts...)
		if err != nil {
			return nil, err
		}
		s.rw = db
	}
	return sqlite.NewSessionRepository(s.rw), nil
}

func (s *localStore) Login(ctx context.Context, req wtmp.LoginRequest) (int64, error) {
	repo, err := s.writer()
	if err != nil {
		return 0, err
	}
	return repo.Login(ctx, req)
}

func (s *localStore) Logout(ctx context.Context, id int64, logout wtmp.Usec) error {
	repo, err := s.writer()
	if err != nil {
		return err
	}
	return repo.Logout(ctx, id, logout)
}

func (s *localStore) FindOpen(ctx context.Context, tty string) (int64, error) {
	repo, err := s.reader()
	if err != nil {
		return 0, err
	}
	return repo.FindOpen(ctx, tty)
}

func (s *localStore) ReadAll(ctx context.Context) iter.Seq2[wtmp.Session, error] {
	return func(yield func(wtmp.Session, error) bool) {
		repo, err := s.reader()
		if err != nil {
			yield(wtmp.Session{}, err)
			return
		}
		for sess, err := range repo.ReadAll(ctx) {
			if !yield(sess, err) {
				return
			}
		}
	}
}

func (s *localStore) BootTime(ctx context.Context) (wtmp.Usec, error) {
	repo, err := s.reader()
	if err != nil {
		return 0, err
	}
	return repo.BootTime(ctx)
}

func (s *localStore) Rotate(ctx context.Context, days int) (wtmp.RotateResult, error) {
	repo, err := s.writer()
	if err != nil {
		return wtmp.RotateResult{}, err
	}
	return repo.Rotate(ctx, days)
}

// Close closes whichever handles were opened.
func (s *localStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.ro != nil {
		err = s.ro.Close()
		s.ro = nil
	}
	if s.rw != nil {
		if cerr := s.rw.Close(); err == nil {
			err = cerr
		}
		s.rw = nil
	}
	return err
}
