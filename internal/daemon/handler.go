package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
	"github.com/ganot/wtmpdb/internal/transport"
)

// Version is reported by Ping.
var Version = "dev"

// Handler dispatches daemon requests to a ledger.
type Handler struct {
	ledger  wtmp.Ledger
	logger  *slog.Logger
	metrics *Metrics
	debug   bool
	quit    func()
	touch   func()
}

// NewHandler creates a handler over ledger. metrics may be nil.
func NewHandler(ledger wtmp.Ledger, logger *slog.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		quit:    func() {},
		touch:   func() {},
	}
}

// ForSocket returns the transport handler for one of the two sockets.
// Only the writer socket accepts methods that modify the ledger.
func (h *Handler) ForSocket(name string, writable bool) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, peer transport.Peer, method string, params json.RawMessage) (any, error) {
		h.touch()
		start := time.Now()
		result, err := h.handle(ctx, writable, peer, method, params)
		elapsed := time.Since(start)

		outcome := outcomeOf(err)
		if h.metrics != nil {
			h.metrics.observe(methodLabel(method), outcome, elapsed)
		}
		h.logger.Debug("request",
			"socket", name,
			"method", method,
			"peer_uid", peer.UID,
			"peer_pid", peer.PID,
			"outcome", outcome,
			"duration", elapsed,
		)
		if err != nil && outcome == "internal" {
			h.logger.Error("request failed", "socket", name, "method", method, "error", err)
		}
		return result, err
	})
}

func (h *Handler) handle(ctx context.Context, writable bool, peer transport.Peer, method string, params json.RawMessage) (any, error) {
	if writable && !h.debug && !peer.IsRoot() {
		return nil, fmt.Errorf("%s: %w: writer socket requires root", method, transport.ErrPermissionDenied)
	}
	if !writable && isWriteMethod(method) {
		return nil, fmt.Errorf("%s: %w: not allowed on the reader socket", method, transport.ErrPermissionDenied)
	}

	switch method {
	case MethodLogin:
		var req LoginParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := h.ledger.Login(ctx, wtmp.LoginRequest{
			Type:       req.Type,
			User:       req.User,
			Login:      req.Login,
			TTY:        req.TTY,
			RemoteHost: req.RemoteHost,
			Service:    req.Service,
		})
		if err != nil {
			return nil, err
		}
		return IDResult{ID: id}, nil
	case MethodLogout:
		var req LogoutParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if err := h.ledger.Logout(ctx, req.ID, req.Logout); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	case MethodGetID:
		var req GetIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := h.ledger.FindOpen(ctx, req.TTY)
		if err != nil {
			return nil, err
		}
		return IDResult{ID: id}, nil
	case MethodGetBootTime:
		boot, err := h.ledger.BootTime(ctx)
		if err != nil {
			return nil, err
		}
		return BootTimeResult{BootTime: boot}, nil
	case MethodReadAll:
		resp := SessionsResult{Sessions: []wtmp.Session{}}
		for sess, err := range h.ledger.ReadAll(ctx) {
			if err != nil {
				return nil, err
			}
			resp.Sessions = append(resp.Sessions, sess)
		}
		return resp, nil
	case MethodRotate:
		var req RotateParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		result, err := h.ledger.Rotate(ctx, req.Days)
		if err != nil {
			return nil, err
		}
		return RotateResult{ArchivePath: result.ArchivePath, Entries: result.Entries}, nil
	case MethodPing:
		return PingResult{PID: os.Getpid(), Version: Version}, nil
	case MethodQuit:
		h.quit()
		return struct{}{}, nil
	default:
		return nil, &transport.Error{Code: transport.ErrMethodNotFound, Message: "unknown method: " + method}
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &transport.Error{Code: transport.ErrInvalidParams, Message: "invalid params: " + err.Error()}
	}
	return nil
}

func outcomeOf(err error) string {
	var rpcErr *transport.Error
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	case errors.Is(err, repository.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, repository.ErrBusy):
		return "busy"
	case errors.Is(err, transport.ErrPermissionDenied):
		return "permission_denied"
	case errors.As(err, &rpcErr):
		return "bad_request"
	default:
		return "internal"
	}
}
