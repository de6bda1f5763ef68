package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFileWriter_KeepsNewestBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "wtmpdb.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()
	w.max, w.keep = 16, 8

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghij", string(data))

	_, err = w.Write([]byte("XY"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghijXY", string(data))
}

func TestLogFileWriter_TruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wtmpdb.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", maxLogSizeBytes+1)), 0o644))

	_, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, keepLogSizeBytes, info.Size())
}
