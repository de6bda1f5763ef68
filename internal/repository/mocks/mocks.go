package mocks

import (
	"context"
	"iter"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/stretchr/testify/mock"
)

// Ledger is a mock for wtmp.Ledger.
type Ledger struct {
	mock.Mock
}

func (m *Ledger) Login(ctx context.Context, req wtmp.LoginRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Ledger) Logout(ctx context.Context, id int64, logout wtmp.Usec) error {
	args := m.Called(ctx, id, logout)
	return args.Error(0)
}

func (m *Ledger) FindOpen(ctx context.Context, tty string) (int64, error) {
	args := m.Called(ctx, tty)
	return args.Get(0).(int64), args.Error(1)
}

// ReadAll yields the sessions passed to Return, followed by the error if set.
func (m *Ledger) ReadAll(ctx context.Context) iter.Seq2[wtmp.Session, error] {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]wtmp.Session)
	err := args.Error(1)
	return func(yield func(wtmp.Session, error) bool) {
		if err != nil {
			yield(wtmp.Session{}, err)
			return
		}
		for _, sess := range sessions {
			if !yield(sess, nil) {
				return
			}
		}
	}
}

func (m *Ledger) BootTime(ctx context.Context) (wtmp.Usec, error) {
	args := m.Called(ctx)
	return args.Get(0).(wtmp.Usec), args.Error(1)
}

func (m *Ledger) Rotate(ctx context.Context, days int) (wtmp.RotateResult, error) {
	args := m.Called(ctx, days)
	if res, ok := args.Get(0).(wtmp.RotateResult); ok {
		return res, args.Error(1)
	}
	return wtmp.RotateResult{}, args.Error(1)
}
