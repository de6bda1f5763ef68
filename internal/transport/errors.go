package transport

import (
	"errors"

	"github.com/ganot/wtmpdb/internal/repository"
	"golang.org/x/sys/unix"
)

var (
	// ErrConnectivity indicates the daemon could not be reached at all
	ErrConnectivity = errors.New("daemon unreachable")

	// ErrPermissionDenied indicates the daemon refused the caller
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRemote indicates the daemon reported an internal failure
	ErrRemote = errors.New("daemon error")
)

// connectivityErrnos are the socket errors that mean "no usable daemon here".
var connectivityErrnos = []unix.Errno{
	unix.ECONNREFUSED,
	unix.ENOENT,
	unix.ECONNRESET,
	unix.EACCES,
	unix.EPERM,
}

// IsConnectivity reports whether err means the daemon is unavailable, as
// opposed to the daemon answering with an error.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) {
		return true
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return false
	}
	for _, errno := range connectivityErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// ErrorCode maps a local error to the code and message sent on the wire.
func ErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFoundCode, err.Error()
	case errors.Is(err, repository.ErrConflict):
		return ErrConflictCode, err.Error()
	case errors.Is(err, repository.ErrInvalidInput):
		return ErrInvalidInputCode, err.Error()
	case errors.Is(err, repository.ErrBusy):
		return ErrBusyCode, err.Error()
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDeniedCode, err.Error()
	default:
		return ErrInternal, err.Error()
	}
}

func sentinelFor(code int) error {
	switch code {
	case ErrNotFoundCode:
		return repository.ErrNotFound
	case ErrConflictCode:
		return repository.ErrConflict
	case ErrInvalidInputCode, ErrInvalidParams:
		return repository.ErrInvalidInput
	case ErrBusyCode:
		return repository.ErrBusy
	case ErrPermissionDeniedCode:
		return ErrPermissionDenied
	default:
		return ErrRemote
	}
}
