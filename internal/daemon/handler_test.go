package daemon

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
	"github.com/ganot/wtmpdb/internal/repository/mocks"
	"github.com/ganot/wtmpdb/internal/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	rootPeer = transport.Peer{UID: 0, Known: true}
	userPeer = transport.Peer{UID: 1000, Known: true}
)

func TestHandler_Login(t *testing.T) {
	ctx := context.Background()
	ledger := &mocks.Ledger{}
	ledger.On("Login", ctx, wtmp.LoginRequest{
		Type:  wtmp.UserProcess,
		User:  "alice",
		Login: 1_000,
		TTY:   "tty1",
	}).Return(int64(3), nil)

	h := NewHandler(ledger, nil, NewMetrics())
	params := json.RawMessage(`{"type":3,"user":"alice","login":1000,"tty":"tty1"}`)
	result, err := h.ForSocket(WriterSocket, true).Handle(ctx, rootPeer, MethodLogin, params)
	require.NoError(t, err)
	require.Equal(t, IDResult{ID: 3}, result)
	ledger.AssertExpectations(t)

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(MethodLogin, "ok")))
}

func TestHandler_WriteOnReaderSocketDenied(t *testing.T) {
	ledger := &mocks.Ledger{}
	h := NewHandler(ledger, nil, nil)
	reader := h.ForSocket(ReaderSocket, false)

	for _, method := range []string{MethodLogin, MethodLogout, MethodRotate, MethodQuit} {
		_, err := reader.Handle(context.Background(), rootPeer, method, nil)
		require.ErrorIs(t, err, transport.ErrPermissionDenied, method)
	}
	ledger.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything)
}

func TestHandler_WriterRequiresRoot(t *testing.T) {
	ctx := context.Background()
	ledger := &mocks.Ledger{}
	ledger.On("Logout", ctx, int64(5), wtmp.Usec(2_000)).Return(nil)

	h := NewHandler(ledger, nil, nil)
	writer := h.ForSocket(WriterSocket, true)
	params := json.RawMessage(`{"id":5,"logout":2000}`)

	_, err := writer.Handle(ctx, userPeer, MethodLogout, params)
	require.ErrorIs(t, err, transport.ErrPermissionDenied)

	_, err = writer.Handle(ctx, transport.Peer{}, MethodLogout, params)
	require.ErrorIs(t, err, transport.ErrPermissionDenied, "unknown peer is not root")

	_, err = writer.Handle(ctx, rootPeer, MethodLogout, params)
	require.NoError(t, err)

	h.debug = true
	_, err = writer.Handle(ctx, userPeer, MethodLogout, params)
	require.NoError(t, err)
	ledger.AssertNumberOfCalls(t, "Logout", 2)
}

func TestHandler_Reads(t *testing.T) {
	ctx := context.Background()
	logout := wtmp.Usec(9)
	sessions := []wtmp.Session{
		{ID: 2, Type: wtmp.UserProcess, User: "bob", Login: 5, TTY: "pts/1"},
		{ID: 1, Type: wtmp.BootTime, User: wtmp.UserReboot, Login: 1, Logout: &logout, TTY: wtmp.BootTTY},
	}
	ledger := &mocks.Ledger{}
	ledger.On("FindOpen", ctx, "pts/1").Return(int64(2), nil)
	ledger.On("BootTime", ctx).Return(wtmp.Usec(0), repository.ErrNotFound)
	ledger.On("ReadAll", ctx).Return(sessions, nil)

	reader := NewHandler(ledger, nil, nil).ForSocket(ReaderSocket, false)

	result, err := reader.Handle(ctx, userPeer, MethodGetID, json.RawMessage(`{"tty":"pts/1"}`))
	require.NoError(t, err)
	require.Equal(t, IDResult{ID: 2}, result)

	_, err = reader.Handle(ctx, userPeer, MethodGetBootTime, nil)
	require.ErrorIs(t, err, repository.ErrNotFound)

	result, err = reader.Handle(ctx, userPeer, MethodReadAll, nil)
	require.NoError(t, err)
	require.Equal(t, SessionsResult{Sessions: sessions}, result)

	result, err = reader.Handle(ctx, userPeer, MethodPing, nil)
	require.NoError(t, err)
	require.Equal(t, Version, result.(PingResult).Version)
}

func TestHandler_BadRequests(t *testing.T) {
	reader := NewHandler(&mocks.Ledger{}, nil, nil).ForSocket(ReaderSocket, false)

	_, err := reader.Handle(context.Background(), userPeer, "Frobnicate", nil)
	var rpcErr *transport.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrMethodNotFound, rpcErr.Code)

	_, err = reader.Handle(context.Background(), userPeer, MethodGetID, json.RawMessage(`{"tty":7}`))
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrInvalidParams, rpcErr.Code)
}

func TestHandler_Quit(t *testing.T) {
	h := NewHandler(&mocks.Ledger{}, nil, nil)
	quit := false
	h.quit = func() { quit = true }

	_, err := h.ForSocket(WriterSocket, true).Handle(context.Background(), rootPeer, MethodQuit, nil)
	require.NoError(t, err)
	require.True(t, quit)
}

func TestHandler_UnknownMethodsShareOneSeries(t *testing.T) {
	h := NewHandler(&mocks.Ledger{}, nil, NewMetrics())
	reader := h.ForSocket(ReaderSocket, false)

	for _, method := range []string{"Frobnicate", "Login2", "x", ""} {
		_, err := reader.Handle(context.Background(), userPeer, method, nil)
		require.Error(t, err)
	}
	_, err := reader.Handle(context.Background(), userPeer, MethodPing, nil)
	require.NoError(t, err)

	require.Equal(t, 2, testutil.CollectAndCount(h.metrics.requests))
	require.Equal(t, 4.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues("unknown", "bad_request")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(MethodPing, "ok")))
}

func TestMethodLabel(t *testing.T) {
	for _, method := range []string{MethodLogin, MethodLogout, MethodGetID, MethodGetBootTime, MethodReadAll, MethodRotate, MethodPing, MethodQuit} {
		require.Equal(t, method, methodLabel(method))
	}
	require.Equal(t, "unknown", methodLabel("DropTables"))
}
