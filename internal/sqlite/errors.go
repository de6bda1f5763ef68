package sqlite

import (
	"fmt"
	"strings"

	"github.com/ganot/wtmpdb/internal/repository"
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isOutOfMemory(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_NOMEM")
}

// storageError tags err with the operation name and its error class.
func storageError(op string, err error) error {
	switch {
	case isBusy(err):
		return fmt.Errorf("%s: %w: %w", op, repository.ErrBusy, err)
	case isOutOfMemory(err):
		return fmt.Errorf("%s: %w: %w", op, repository.ErrOutOfMemory, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, repository.ErrStorage, err)
	}
}
