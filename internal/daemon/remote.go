package daemon

import (
	"context"
	"iter"
	"path/filepath"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/transport"
)

// RemoteLedger implements wtmp.Ledger by calling a running daemon. Reads go
// to the reader socket, writes to the writer socket. Daemon errors unwrap to
// the same repository sentinels the local store returns.
type RemoteLedger struct {
	reader *transport.Client
	writer *transport.Client
}

// NewRemoteLedger creates a ledger for the daemon listening in socketDir.
func NewRemoteLedger(socketDir string, timeout time.Duration) *RemoteLedger {
	return &RemoteLedger{
		reader: transport.NewClient(filepath.Join(socketDir, ReaderSocket), timeout),
		writer: transport.NewClient(filepath.Join(socketDir, WriterSocket), timeout),
	}
}

func (r *RemoteLedger) Login(ctx context.Context, req wtmp.LoginRequest) (int64, error) {
	var out IDResult
	err := r.writer.Call(ctx, MethodLogin, LoginParams{
		Type:       req.Type,
		User:       req.User,
		Login:      req.Login,
		TTY:        req.TTY,
		RemoteHost: req.RemoteHost,
		Service:    req.Service,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (r *RemoteLedger) Logout(ctx context.Context, id int64, logout wtmp.Usec) error {
	return r.writer.Call(ctx, MethodLogout, LogoutParams{ID: id, Logout: logout}, nil)
}

func (r *RemoteLedger) FindOpen(ctx context.Context, tty string) (int64, error) {
	var out IDResult
	if err := r.reader.Call(ctx, MethodGetID, GetIDParams{TTY: tty}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// ReadAll fetches the whole listing before yielding, so a connectivity
// failure surfaces before any session reaches the caller.
func (r *RemoteLedger) ReadAll(ctx context.Context) iter.Seq2[wtmp.Session, error] {
	return func(yield func(wtmp.Session, error) bool) {
		sessions, err := r.Sessions(ctx)
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

// Sessions returns every session, newest first.
func (r *RemoteLedger) Sessions(ctx context.Context) ([]wtmp.Session, error) {
	var out SessionsResult
	if err := r.reader.Call(ctx, MethodReadAll, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (r *RemoteLedger) BootTime(ctx context.Context) (wtmp.Usec, error) {
	var out BootTimeResult
	if err := r.reader.Call(ctx, MethodGetBootTime, nil, &out); err != nil {
		return 0, err
	}
	return out.BootTime, nil
}

func (r *RemoteLedger) Rotate(ctx context.Context, days int) (wtmp.RotateResult, error) {
	var out RotateResult
	if err := r.writer.Call(ctx, MethodRotate, RotateParams{Days: days}, &out); err != nil {
		return wtmp.RotateResult{}, err
	}
	return wtmp.RotateResult{ArchivePath: out.ArchivePath, Entries: out.Entries}, nil
}

// Ping checks that the daemon answers on the reader socket.
func (r *RemoteLedger) Ping(ctx context.Context) (PingResult, error) {
	var out PingResult
	err := r.reader.Call(ctx, MethodPing, nil, &out)
	return out, err
}

// Quit asks the daemon to stop.
func (r *RemoteLedger) Quit(ctx context.Context) error {
	return r.writer.Call(ctx, MethodQuit, nil, nil)
}
