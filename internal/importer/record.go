package importer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
)

// RecordSize is the size of one glibc utmp record.
const RecordSize = 384

// RecordType is the ut_type field of a utmp record.
type RecordType int16

// Record types the importer acts on. Every other type is skipped.
const (
	RunLevel    RecordType = 1
	BootTime    RecordType = 2
	UserProcess RecordType = 7
	DeadProcess RecordType = 8
)

// rawRecord mirrors the on-disk glibc layout.
type rawRecord struct {
	Type    int16
	_       [2]byte
	PID     int32
	Line    [32]byte
	ID      [4]byte
	User    [32]byte
	Host    [256]byte
	Exit    [2]int16
	Session int32
	Sec     int32
	Usec    int32
	AddrV6  [4]int32
	_       [20]byte
}

// Record is one decoded utmp entry.
type Record struct {
	Type RecordType
	PID  int32
	Line string
	ID   [4]byte
	User string
	Host string
	Sec  int64
	Usec int64
}

// Time returns the record timestamp, or Infinity when it cannot be
// represented.
func (r Record) Time() wtmp.Usec {
	return wtmp.FromTimeval(r.Sec, r.Usec)
}

// bootMarker reports whether the record carries the "~~" id that the init
// system uses for reboot and shutdown entries.
func (r Record) bootMarker() bool {
	return r.ID[0] == '~' && r.ID[1] == '~' && r.ID[2] == 0
}

// DecodeRecord decodes one little-endian utmp record.
func DecodeRecord(buf []byte) (Record, error) {
	if len(buf) < RecordSize {
		return Record{}, fmt.Errorf("short record: %d bytes", len(buf))
	}
	var raw rawRecord
	if _, err := binary.Decode(buf[:RecordSize], binary.LittleEndian, &raw); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return Record{
		Type: RecordType(raw.Type),
		PID:  raw.PID,
		Line: cString(raw.Line[:]),
		ID:   raw.ID,
		User: cString(raw.User[:]),
		Host: cString(raw.Host[:]),
		Sec:  int64(raw.Sec),
		Usec: int64(raw.Usec),
	}, nil
}

// EncodeRecord is the inverse of DecodeRecord. Strings longer than their
// field are truncated.
func EncodeRecord(r Record) []byte {
	raw := rawRecord{
		Type: int16(r.Type),
		PID:  r.PID,
		ID:   r.ID,
		Sec:  int32(r.Sec),
		Usec: int32(r.Usec),
	}
	copy(raw.Line[:], r.Line)
	copy(raw.User[:], r.User)
	copy(raw.Host[:], r.Host)

	buf := make([]byte, RecordSize)
	if _, err := binary.Encode(buf, binary.LittleEndian, &raw); err != nil {
		// rawRecord is fixed size and buf is large enough
		panic(err)
	}
	return buf
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
