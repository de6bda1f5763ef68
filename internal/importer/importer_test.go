package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/repository"
	"github.com/ganot/wtmpdb/internal/repository/mocks"
	"github.com/ganot/wtmpdb/internal/sqlite"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var marker = [4]byte{'~', '~', 0, 0}

func newLedger(t *testing.T) *sqlite.SessionRepository {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "wtmp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewSessionRepository(db)
}

func sessionsByLogin(t *testing.T, ledger wtmp.Ledger) map[string]wtmp.Session {
	t.Helper()
	out := make(map[string]wtmp.Session)
	for sess, err := range ledger.ReadAll(context.Background()) {
		require.NoError(t, err)
		out[sess.User+"@"+sess.Login.Time().UTC().Format("150405")] = sess
	}
	return out
}

func pairingRecords() []Record {
	return []Record{
		{Type: BootTime, ID: marker, User: "reboot", Line: "~", Host: "6.1.0-13-amd64", Sec: 100},
		{Type: UserProcess, PID: 10, Line: "tty1", User: "alice", Sec: 110},
		{Type: UserProcess, PID: 11, Line: "pts/0", User: "bob", Host: "192.0.2.1", Sec: 120},
		{Type: 6, PID: 12, Line: "tty2", User: "LOGIN", Sec: 125},
		{Type: DeadProcess, PID: 10, Line: "tty1", Sec: 130},
		{Type: DeadProcess, PID: 0, Line: "pts/0", Sec: 140},
		{Type: DeadProcess, PID: 10, Line: "tty1", Sec: 145},
		{Type: RunLevel, ID: marker, User: "shutdown", Line: "~~", Sec: 150},
		{Type: RunLevel, ID: marker, User: "shutdown", Line: "~~", Sec: 160},
		{Type: BootTime, ID: marker, User: "reboot", Line: "~", Sec: 200},
		{Type: DeadProcess, PID: 11, Line: "pts/0", Sec: 210},
		{Type: UserProcess, PID: 13, Line: "tty2", User: "carol", Sec: 220},
		{Type: RunLevel, ID: [4]byte{'~', '~', '~', 0}, User: "shutdown", Sec: 230},
	}
}

func TestImportRecords_Pairing(t *testing.T) {
	ledger := newLedger(t)

	stats, err := New(ledger, nil).ImportRecords(context.Background(), pairingRecords())
	require.NoError(t, err)
	require.Equal(t, Stats{Records: 13, Opened: 5, Closed: 3}, stats)

	got := sessionsByLogin(t, ledger)
	require.Len(t, got, 5)

	boot := got["reboot@000140"]
	require.Equal(t, wtmp.BootTime, boot.Type)
	require.Equal(t, wtmp.BootTTY, boot.TTY)
	require.Equal(t, "6.1.0-13-amd64", boot.RemoteHost)
	require.NotNil(t, boot.Logout)
	require.Equal(t, wtmp.FromTimeval(150, 0), *boot.Logout)

	alice := got["alice@000150"]
	require.NotNil(t, alice.Logout)
	require.Equal(t, wtmp.FromTimeval(130, 0), *alice.Logout)

	bob := got["bob@000200"]
	require.Equal(t, "192.0.2.1", bob.RemoteHost)
	require.NotNil(t, bob.Logout)
	require.Equal(t, wtmp.FromTimeval(140, 0), *bob.Logout, "matched by line when pid is zero")

	require.True(t, got["reboot@000320"].IsOpen(), "second boot has no shutdown")
	require.True(t, got["carol@000340"].IsOpen())
}

func TestImportRecords_DeadProcessStopsAtBoot(t *testing.T) {
	ledger := newLedger(t)
	records := []Record{
		{Type: UserProcess, PID: 20, Line: "tty1", User: "dave", Sec: 10},
		{Type: BootTime, ID: marker, User: "reboot", Sec: 20},
		{Type: DeadProcess, PID: 20, Line: "tty1", Sec: 30},
	}

	stats, err := New(ledger, nil).ImportRecords(context.Background(), records)
	require.NoError(t, err)
	require.Zero(t, stats.Closed)

	id, err := ledger.FindOpen(context.Background(), "tty1")
	require.NoError(t, err)
	require.Positive(t, id)
}

func TestImportRecords_AbortsWithContext(t *testing.T) {
	ctx := context.Background()
	ledger := &mocks.Ledger{}
	ledger.On("Login", ctx, mock.MatchedBy(func(req wtmp.LoginRequest) bool { return req.User == "ok" })).Return(int64(1), nil)
	ledger.On("Login", ctx, mock.MatchedBy(func(req wtmp.LoginRequest) bool { return req.User == "" })).
		Return(int64(0), repository.ErrInvalidInput)

	records := []Record{
		{Type: UserProcess, PID: 1, Line: "tty1", User: "ok", Sec: 1},
		{Type: UserProcess, PID: 2, Line: "tty2", User: "", Sec: 2},
		{Type: UserProcess, PID: 3, Line: "tty3", User: "never", Sec: 3},
	}

	stats, err := New(ledger, nil).ImportRecords(ctx, records)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
	require.ErrorContains(t, err, "record 1")
	require.Equal(t, 1, stats.Opened)
	ledger.AssertNumberOfCalls(t, "Login", 2)
}

func TestImportRecords_UnrepresentableTime(t *testing.T) {
	ledger := newLedger(t)
	_, err := New(ledger, nil).ImportRecords(context.Background(), []Record{
		{Type: UserProcess, PID: 1, Line: "tty1", User: "eve", Sec: -5},
	})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func writeLog(t *testing.T, records []Record, extra int) string {
	t.Helper()
	var buf bytes.Buffer
	for _, rec := range records {
		buf.Write(EncodeRecord(rec))
	}
	buf.Write(make([]byte, extra))
	path := filepath.Join(t.TempDir(), "wtmp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestImport_File(t *testing.T) {
	ledger := newLedger(t)
	path := writeLog(t, pairingRecords(), 100)

	stats, err := New(ledger, nil).Import(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 13, stats.Records)
	require.Len(t, sessionsByLogin(t, ledger), 5)
}

func TestImport_EmptyFile(t *testing.T) {
	ledger := newLedger(t)

	stats, err := New(ledger, nil).Import(context.Background(), writeLog(t, nil, 0))
	require.NoError(t, err)
	require.Zero(t, stats.Records)

	stats, err = New(ledger, nil).Import(context.Background(), writeLog(t, nil, RecordSize-1))
	require.NoError(t, err)
	require.Zero(t, stats.Records)
}

func TestImport_MissingFile(t *testing.T) {
	_, err := New(newLedger(t), nil).Import(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(newLedger(t), nil).Import(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyPath)
}
