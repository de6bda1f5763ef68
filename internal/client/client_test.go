package client

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
	"github.com/ganot/wtmpdb/internal/repository/mocks"
	"github.com/ganot/wtmpdb/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var refused = fmt.Errorf("dial: %w", unix.ECONNREFUSED)

func TestNew_Modes(t *testing.T) {
	require.Equal(t, RemoteActive, New("").Mode())
	require.Equal(t, RemoteDisabled, New("", WithRemoteDisabled()).Mode())
	require.Equal(t, ForcedRemote, New(DaemonPath).Mode())
	require.Equal(t, ForcedLocal, New("/tmp/x.db").Mode())
	require.Equal(t, ForcedLocal, New("/tmp/x.db", WithRemoteDisabled()).Mode())
}

func TestClient_FallbackIsSticky(t *testing.T) {
	ctx := context.Background()
	req := wtmp.LoginRequest{Type: wtmp.UserProcess, User: "alice", Login: 1, TTY: "tty1"}

	remote := &mocks.Ledger{}
	remote.On("Login", ctx, req).Return(int64(0), refused).Once()
	local := &mocks.Ledger{}
	local.On("Login", ctx, req).Return(int64(1), nil).Once()
	local.On("FindOpen", ctx, "tty1").Return(int64(1), nil).Once()

	c := New("", WithRemote(remote), WithLocal(local))

	id, err := c.Login(ctx, req)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.Equal(t, RemoteDisabled, c.Mode())

	id, err = c.FindOpen(ctx, "tty1")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	remote.AssertNumberOfCalls(t, "Login", 1)
	remote.AssertNotCalled(t, "FindOpen", mock.Anything, mock.Anything)
	local.AssertExpectations(t)
}

func TestClient_DaemonErrorsAreNotFallback(t *testing.T) {
	ctx := context.Background()
	remote := &mocks.Ledger{}
	remote.On("Logout", ctx, int64(4), wtmp.Usec(10)).Return(fmt.Errorf("Logout: %w", repository.ErrConflict))
	remote.On("BootTime", ctx).Return(wtmp.Usec(0), &transport.Error{Code: transport.ErrPermissionDeniedCode, Message: "denied"})
	local := &mocks.Ledger{}

	c := New("", WithRemote(remote), WithLocal(local))

	require.ErrorIs(t, c.Logout(ctx, 4, 10), repository.ErrConflict)
	_, err := c.BootTime(ctx)
	require.ErrorIs(t, err, transport.ErrPermissionDenied)

	require.Equal(t, RemoteActive, c.Mode())
	local.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything, mock.Anything)
	local.AssertNotCalled(t, "BootTime", mock.Anything)
}

func TestClient_ForcedRemoteNeverFallsBack(t *testing.T) {
	ctx := context.Background()
	remote := &mocks.Ledger{}
	remote.On("Rotate", ctx, 30).Return(nil, refused)
	local := &mocks.Ledger{}

	c := New(DaemonPath, WithRemote(remote), WithLocal(local))

	_, err := c.Rotate(ctx, 30)
	require.ErrorIs(t, err, unix.ECONNREFUSED)
	require.Equal(t, ForcedRemote, c.Mode())
	local.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything)
}

func TestClient_ForcedLocalSkipsDaemon(t *testing.T) {
	ctx := context.Background()
	remote := &mocks.Ledger{}
	local := &mocks.Ledger{}
	local.On("BootTime", ctx).Return(wtmp.Usec(0), repository.ErrNotFound)

	c := New("/var/tmp/custom.db", WithRemote(remote), WithLocal(local))

	_, err := c.BootTime(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)
	remote.AssertNotCalled(t, "BootTime", mock.Anything)
}

func TestClient_ReadAllFallback(t *testing.T) {
	ctx := context.Background()
	sessions := []wtmp.Session{{ID: 1, Type: wtmp.UserProcess, User: "bob", Login: 5}}

	remote := &mocks.Ledger{}
	remote.On("ReadAll", ctx).Return(nil, refused).Once()
	local := &mocks.Ledger{}
	local.On("ReadAll", ctx).Return(sessions, nil)

	c := New("", WithRemote(remote), WithLocal(local))

	var got []wtmp.Session
	for sess, err := range c.ReadAll(ctx) {
		require.NoError(t, err)
		got = append(got, sess)
	}
	require.Equal(t, sessions, got)
	require.Equal(t, RemoteDisabled, c.Mode())

	got = got[:0]
	for sess, err := range c.ReadAll(ctx) {
		require.NoError(t, err)
		got = append(got, sess)
	}
	require.Equal(t, sessions, got)
	remote.AssertNumberOfCalls(t, "ReadAll", 1)
}

func TestClient_NoDaemonUsesFallbackFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lib", "wtmp.db")

	c := New("",
		WithSocketDir(filepath.Join(dir, "run")),
		WithFallbackPath(dbPath),
	)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	id, err := c.Login(ctx, wtmp.LoginRequest{Type: wtmp.UserProcess, User: "carol", Login: 1_000, TTY: "pts/3"})
	require.NoError(t, err)
	require.Equal(t, RemoteDisabled, c.Mode())

	found, err := c.FindOpen(ctx, "pts/3")
	require.NoError(t, err)
	require.Equal(t, id, found)
	require.FileExists(t, dbPath)
}

func TestClient_LocalScenario(t *testing.T) {
	ctx := context.Background()
	c := New(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	_, err := c.BootTime(ctx)
	require.Error(t, err, "reading a database that does not exist yet fails")

	id, err := c.Login(ctx, wtmp.LoginRequest{Type: wtmp.UserProcess, User: "root", Login: 1_000_000, TTY: "tty1"})
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx, id, 4_600_000_000))

	_, err = c.FindOpen(ctx, "tty1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = c.BootTime(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
