package wtmp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Service records session and system lifecycle events in a Ledger.
type Service struct {
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new session hook service.
func NewService(ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// SessionInfo describes a user login.
type SessionInfo struct {
	User       string
	TTY        string
	RemoteHost string
	Service    string
}

// OpenSession opens a user session stamped with the current time.
func (s *Service) OpenSession(ctx context.Context, info SessionInfo) (int64, error) {
	if info.User == "" {
		return 0, ErrMissingUser
	}
	id, err := s.ledger.Login(ctx, LoginRequest{
		Type:       UserProcess,
		User:       info.User,
		Login:      FromTime(s.now()),
		TTY:        info.TTY,
		RemoteHost: info.RemoteHost,
		Service:    info.Service,
	})
	if err != nil {
		return 0, fmt.Errorf("open session for %s: %w", info.User, err)
	}
	s.logger.Debug("session opened", "id", id, "user", info.User, "tty", info.TTY)
	return id, nil
}

// CloseSession closes the session with the given id at the current time.
func (s *Service) CloseSession(ctx context.Context, id int64) error {
	if err := s.ledger.Logout(ctx, id, FromTime(s.now())); err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}
	s.logger.Debug("session closed", "id", id)
	return nil
}

// LogSession opens a session when user is set, otherwise closes the open
// session on tty. It returns the id of the affected session.
func (s *Service) LogSession(ctx context.Context, tty, user, host, service string) (int64, error) {
	if user != "" {
		return s.OpenSession(ctx, SessionInfo{User: user, TTY: tty, RemoteHost: host, Service: service})
	}
	if tty == "" {
		return 0, ErrMissingTTY
	}
	id, err := s.ledger.FindOpen(ctx, tty)
	if err != nil {
		return 0, fmt.Errorf("find open session on %s: %w", tty, err)
	}
	return id, s.CloseSession(ctx, id)
}

// Boot records a system boot at bootTime. kernelRelease is kept in the
// remote host column, as the legacy tools do.
func (s *Service) Boot(ctx context.Context, bootTime time.Time, softReboot bool, kernelRelease string) (int64, error) {
	user := UserReboot
	if softReboot {
		user = UserSoftReboot
	}
	id, err := s.ledger.Login(ctx, LoginRequest{
		Type:       BootTime,
		User:       user,
		Login:      FromTime(bootTime),
		TTY:        BootTTY,
		RemoteHost: kernelRelease,
	})
	if err != nil {
		return 0, fmt.Errorf("write boot entry: %w", err)
	}
	s.logger.Info("boot recorded", "id", id, "user", user, "time", bootTime)
	return id, nil
}

// Shutdown closes the open boot marker at the current time.
func (s *Service) Shutdown(ctx context.Context) error {
	id, err := s.ledger.FindOpen(ctx, BootTTY)
	if err != nil {
		return fmt.Errorf("find boot entry: %w", err)
	}
	if err := s.ledger.Logout(ctx, id, FromTime(s.now())); err != nil {
		return fmt.Errorf("write shutdown entry: %w", err)
	}
	s.logger.Info("shutdown recorded", "id", id)
	return nil
}
