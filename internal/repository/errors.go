package repository

import "errors"

var (
	// ErrNotFound is returned when no matching session or boot record exists
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an update affected the wrong number of rows
	ErrConflict = errors.New("conflict: update did not affect exactly one row")

	// ErrStorage is returned when opening, preparing or executing a statement fails
	ErrStorage = errors.New("storage error")

	// ErrBusy is returned when the store lock could not be acquired within the busy timeout
	ErrBusy = errors.New("storage busy")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfMemory is returned when an allocation could not be satisfied
	ErrOutOfMemory = errors.New("out of memory")
)
