package daemon

import "github.com/ganot/wtmpdb/internal/domain/wtmp"

// Method names understood by the daemon.
const (
	MethodLogin       = "Login"
	MethodLogout      = "Logout"
	MethodGetID       = "GetID"
	MethodGetBootTime = "GetBootTime"
	MethodReadAll     = "ReadAll"
	MethodRotate      = "Rotate"
	MethodPing        = "Ping"
	MethodQuit        = "Quit"
)

// Socket names inside the socket directory.
const (
	ReaderSocket = "socket.reader"
	WriterSocket = "socket.writer"
)

// LoginParams is the payload for Login.
type LoginParams struct {
	Type       wtmp.Type `json:"type"`
	User       string    `json:"user"`
	Login      wtmp.Usec `json:"login"`
	TTY        string    `json:"tty,omitempty"`
	RemoteHost string    `json:"rhost,omitempty"`
	Service    string    `json:"service,omitempty"`
}

// LogoutParams is the payload for Logout.
type LogoutParams struct {
	ID     int64     `json:"id"`
	Logout wtmp.Usec `json:"logout"`
}

// GetIDParams is the payload for GetID.
type GetIDParams struct {
	TTY string `json:"tty"`
}

// RotateParams is the payload for Rotate.
type RotateParams struct {
	Days int `json:"days"`
}

// IDResult carries a session ID.
type IDResult struct {
	ID int64 `json:"id"`
}

// BootTimeResult carries the latest boot time.
type BootTimeResult struct {
	BootTime wtmp.Usec `json:"boot_time"`
}

// SessionsResult carries every session, newest first.
type SessionsResult struct {
	Sessions []wtmp.Session `json:"sessions"`
}

// RotateResult carries the outcome of a rotation.
type RotateResult struct {
	ArchivePath string `json:"archive_path,omitempty"`
	Entries     uint64 `json:"entries"`
}

// PingResult identifies a running daemon.
type PingResult struct {
	PID     int    `json:"pid"`
	Version string `json:"version"`
}

// methodLabel bounds the metric label set to the methods the daemon knows.
func methodLabel(method string) string {
	switch method {
	case MethodGetID, MethodGetBootTime, MethodReadAll, MethodPing:
		return method
	}
	if isWriteMethod(method) {
		return method
	}
	return "unknown"
}

func isWriteMethod(method string) bool {
	switch method {
	case MethodLogin, MethodLogout, MethodRotate, MethodQuit:
		return true
	default:
		return false
	}
}
