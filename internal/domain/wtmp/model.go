package wtmp

import (
	"math"
	"time"
)

// Type mirrors the legacy record types stored in the ledger.
type Type int

const (
	Empty       Type = 0
	BootTime    Type = 1
	RunLevel    Type = 2
	UserProcess Type = 3
)

func (t Type) String() string {
	switch t {
	case Empty:
		return "empty"
	case BootTime:
		return "boot"
	case RunLevel:
		return "runlevel"
	case UserProcess:
		return "user"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known record types.
func (t Type) Valid() bool {
	return t >= Empty && t <= UserProcess
}

// Reserved user names and terminal token for system markers.
const (
	UserReboot     = "reboot"
	UserSoftReboot = "soft-reboot"
	UserShutdown   = "shutdown"
	BootTTY        = "~"
)

// Usec is a timestamp in microseconds since the Unix epoch.
type Usec uint64

// Infinity marks a timestamp that cannot be represented.
const Infinity Usec = math.MaxUint64

const (
	usecPerSec  = 1_000_000
	nsecPerUsec = 1_000
)

// FromTimespec converts seconds and nanoseconds to Usec. Negative values and
// values that overflow yield Infinity.
func FromTimespec(sec, nsec int64) Usec {
	if sec < 0 || nsec < 0 {
		return Infinity
	}
	frac := uint64(nsec) / nsecPerUsec
	if uint64(sec) > (math.MaxUint64-frac)/usecPerSec {
		return Infinity
	}
	return Usec(uint64(sec)*usecPerSec + frac)
}

// FromTimeval converts seconds and microseconds to Usec with the same
// sentinel rules as FromTimespec.
func FromTimeval(sec, usec int64) Usec {
	if usec < 0 || usec > math.MaxInt64/nsecPerUsec {
		return Infinity
	}
	return FromTimespec(sec, usec*nsecPerUsec)
}

// FromTime converts t to Usec.
func FromTime(t time.Time) Usec {
	return FromTimespec(t.Unix(), int64(t.Nanosecond()))
}

// Time converts u back to a time.Time. Infinity, and any value past the
// signed 64-bit range, maps to the zero time.
func (u Usec) Time() time.Time {
	if u > math.MaxInt64 {
		return time.Time{}
	}
	return time.UnixMicro(int64(u))
}

// IsInfinity reports whether u is the Infinity sentinel.
func (u Usec) IsInfinity() bool {
	return u == Infinity
}

// Session is one ledger record: a login/logout interval or a boot marker.
type Session struct {
	ID         int64  `json:"id" yaml:"id"`
	Type       Type   `json:"type" yaml:"type"`
	User       string `json:"user" yaml:"user"`
	Login      Usec   `json:"login" yaml:"login"`
	Logout     *Usec  `json:"logout,omitempty" yaml:"logout,omitempty"`
	TTY        string `json:"tty,omitempty" yaml:"tty,omitempty"`
	RemoteHost string `json:"remote_host,omitempty" yaml:"remote_host,omitempty"`
	Service    string `json:"service,omitempty" yaml:"service,omitempty"`
}

// IsOpen reports whether no logout time has been recorded.
func (s Session) IsOpen() bool {
	return s.Logout == nil
}

// Duration returns the length of a closed session, or zero for open ones.
func (s Session) Duration() time.Duration {
	if s.Logout == nil || *s.Logout < s.Login {
		return 0
	}
	return time.Duration(*s.Logout-s.Login) * time.Microsecond
}

// LoginRequest describes a new session.
type LoginRequest struct {
	Type       Type
	User       string
	Login      Usec
	TTY        string
	RemoteHost string
	Service    string
}

// RotateResult reports the outcome of a rotation. ArchivePath is empty when
// nothing was moved.
type RotateResult struct {
	ArchivePath string `json:"archive_path,omitempty"`
	Entries     uint64 `json:"entries"`
}
