package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var pastDeadline = time.Unix(1, 0)

// Handler answers one request received on a socket.
type Handler interface {
	Handle(ctx context.Context, peer Peer, method string, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, peer Peer, method string, params json.RawMessage) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, peer Peer, method string, params json.RawMessage) (any, error) {
	return f(ctx, peer, method, params)
}

// Server serves newline-delimited JSON-RPC on a Unix socket.
type Server struct {
	path    string
	mode    fs.FileMode
	handler Handler
	logger  *slog.Logger

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a server for the socket at path, created with mode.
func NewServer(path string, mode fs.FileMode, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		path:    path,
		mode:    mode,
		handler: handler,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen binds the socket, replacing a stale socket file left behind by a
// previous run.
func (s *Server) Listen() error {
	if info, err := os.Lstat(s.path); err == nil {
		if info.Mode()&fs.ModeSocket == 0 {
			return fmt.Errorf("listen %s: existing file is not a socket", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("listen %s: remove stale socket: %w", s.path, err)
		}
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		listener.Close()
		return fmt.Errorf("listen %s: chmod: %w", s.path, err)
	}
	s.listener = listener
	s.running.Store(true)
	return nil
}

// Serve accepts connections until Shutdown is called. Listen must have
// succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("serve %s: not listening", s.path)
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
		}()
	}
}

// Shutdown stops accepting connections, closes open ones, removes the
// socket file and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) && closeErr == nil {
			closeErr = err
		}
	}

	s.mu.Lock()
	for conn := range s.conns {
		// Unblocks idle readers; a request already being handled still
		// finishes before its response write fails.
		_ = conn.SetReadDeadline(pastDeadline)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if errors.Is(closeErr, net.ErrClosed) {
			return nil
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	peer, err := peerCredentials(conn)
	if err != nil {
		s.logger.Debug("peer credentials unavailable", "socket", s.path, "error", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := ReadLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.running.Load() {
				s.logger.Debug("connection closed", "socket", s.path, "error", err)
			}
			if errors.Is(err, ErrMessageTooLarge) {
				_ = WriteMessage(conn, NewError(nil, ErrInvalidReq, err.Error(), nil))
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		resp := s.dispatch(ctx, peer, line)
		if err := WriteMessage(conn, resp); err != nil {
			s.logger.Debug("write response", "socket", s.path, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, peer Peer, line []byte) Response {
	req, err := ParseRequest(line)
	if err != nil {
		return NewError(nil, ErrParseCode, err.Error(), nil)
	}

	result, err := s.handler.Handle(ctx, peer, req.Method, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return NewError(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		code, msg := ErrorCode(err)
		return NewError(req.ID, code, msg, nil)
	}

	resp, err := NewResult(req.ID, result)
	if err != nil {
		return NewError(req.ID, ErrInternal, err.Error(), nil)
	}
	return resp
}
