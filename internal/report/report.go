// Package report renders ledger sessions the way last(1) does.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	Plain Format = "plain"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Plain, JSON, YAML:
		return f, nil
	case "":
		return Plain, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

const (
	shortTime = "Mon Jan _2 15:04"
	isoTime   = "2006-01-02T15:04:05-0700"
)

// Options filters and shapes the listing.
type Options struct {
	Format Format
	// Limit stops after this many entries; 0 means no limit.
	Limit int
	Since time.Time
	Until time.Time
	// Match keeps only entries whose user or tty is listed.
	Match []string
	// ISO prints full ISO 8601 timestamps.
	ISO bool
	// Name is used in the "begins" footer.
	Name string
	// Location for timestamps; defaults to time.Local.
	Location *time.Location
}

// Entry is one rendered line.
type Entry struct {
	User     string `json:"user" yaml:"user"`
	TTY      string `json:"tty" yaml:"tty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`
	Login    string `json:"login" yaml:"login"`
	Logout   string `json:"logout" yaml:"logout"`
	Length   string `json:"length,omitempty" yaml:"length,omitempty"`
}

// Listing is the structured form written for JSON and YAML.
type Listing struct {
	Entries []Entry `json:"entries" yaml:"entries"`
	Start   string  `json:"start,omitempty" yaml:"start,omitempty"`
}

// Build collects entries from sessions, newest first as the ledger yields
// them.
func Build(sessions iter.Seq2[wtmp.Session, error], opts Options) (Listing, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	format := func(u wtmp.Usec) string {
		t := time.Unix(int64(u/1_000_000), 0).In(loc)
		if opts.ISO {
			return t.Format(isoTime)
		}
		return t.Format(shortTime)
	}

	listing := Listing{Entries: []Entry{}}
	var (
		oldest      wtmp.Usec = wtmp.Infinity
		afterReboot bool
	)
	for sess, err := range sessions {
		if err != nil {
			return Listing{}, err
		}
		if sess.Login < oldest {
			oldest = sess.Login
		}
		if opts.Limit > 0 && len(listing.Entries) >= opts.Limit {
			continue
		}
		login := sess.Login.Time()
		if !opts.Since.IsZero() && login.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && login.After(opts.Until) {
			continue
		}
		if len(opts.Match) > 0 && !slices.Contains(opts.Match, sess.User) && !slices.Contains(opts.Match, sess.TTY) {
			continue
		}

		entry := Entry{
			User:     sess.User,
			TTY:      sess.TTY,
			Hostname: sess.RemoteHost,
			Service:  sess.Service,
			Login:    format(sess.Login),
		}
		if entry.TTY == "" {
			entry.TTY = "?"
		}
		switch {
		case sess.Logout != nil:
			entry.Logout = format(*sess.Logout)
			entry.Length = Length(sess.Login, *sess.Logout)
		case afterReboot:
			entry.Logout = "crash"
		case sess.Type == wtmp.UserProcess:
			entry.Logout = "still logged in"
		case sess.Type == wtmp.BootTime:
			entry.Logout = "still running"
		default:
			entry.Logout = "ERROR"
			entry.Length = fmt.Sprintf("Unknown: %d", sess.Type)
		}
		if sess.Type == wtmp.BootTime {
			entry.TTY = "system boot"
			afterReboot = true
		}
		listing.Entries = append(listing.Entries, entry)
	}
	if oldest != wtmp.Infinity {
		listing.Start = format(oldest)
	}
	return listing, nil
}

// Length formats a session duration as last(1) does: "D+HH:MM" when at
// least a day, "HH:MM" otherwise.
func Length(login, logout wtmp.Usec) string {
	if logout < login {
		return "00:00"
	}
	secs := uint64(logout-login) / 1_000_000
	mins := (secs / 60) % 60
	hours := (secs / 3600) % 24
	days := secs / 86400
	if days > 0 {
		return fmt.Sprintf("%d+%02d:%02d", days, hours, mins)
	}
	return fmt.Sprintf("%02d:%02d", hours, mins)
}

// Write renders sessions to w.
func Write(w io.Writer, sessions iter.Seq2[wtmp.Session, error], opts Options) error {
	listing, err := Build(sessions, opts)
	if err != nil {
		return err
	}

	switch opts.Format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(listing); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writePlain(w, listing, opts)
	}
}

func writePlain(w io.Writer, listing Listing, opts Options) error {
	name := opts.Name
	if name == "" {
		name = "wtmpdb"
	}
	if len(listing.Entries) == 0 && listing.Start == "" {
		_, err := fmt.Fprintf(w, "%s has no entries\n", name)
		return err
	}

	timeWidth := len(shortTime)
	if opts.ISO {
		timeWidth = 24
	}
	for _, e := range listing.Entries {
		length := e.Length
		if length != "" {
			length = "(" + length + ")"
		}
		line := fmt.Sprintf("%-8s %-12.12s %-16.16s %-12.12s %-*s - %-*s %s",
			shortUser(e.User), e.TTY, e.Hostname, e.Service,
			timeWidth, e.Login, timeWidth, e.Logout, length)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%s begins %s\n", name, listing.Start)
	return err
}

// shortUser keeps names within the 8 column user field; soft reboots get
// their conventional abbreviation.
func shortUser(user string) string {
	if user == wtmp.UserSoftReboot {
		return "s-reboot"
	}
	return user
}
