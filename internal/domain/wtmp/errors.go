package wtmp

import "errors"

var (
	// ErrMissingUser indicates a login request without a user name.
	ErrMissingUser = errors.New("user name is required")
	// ErrMissingTTY indicates a logout request without a terminal.
	ErrMissingTTY = errors.New("tty is required to close a session")
)
