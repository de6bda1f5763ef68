package transport

import "errors"

// Peer identifies the process on the other end of a socket connection.
type Peer struct {
	PID   int32
	UID   uint32
	GID   uint32
	Known bool
}

// IsRoot reports whether the peer is known to run as uid 0.
func (p Peer) IsRoot() bool {
	return p.Known && p.UID == 0
}

var errNoCredentials = errors.New("peer credentials unavailable")
