package wtmp

import (
	"context"
	"iter"
)

// Ledger is the set of logical operations every back end provides.
type Ledger interface {
	Login(ctx context.Context, req LoginRequest) (int64, error)
	Logout(ctx context.Context, id int64, logout Usec) error
	FindOpen(ctx context.Context, tty string) (int64, error)
	ReadAll(ctx context.Context) iter.Seq2[Session, error]
	BootTime(ctx context.Context) (Usec, error)
	Rotate(ctx context.Context, days int) (RotateResult, error)
}
