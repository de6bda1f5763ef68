package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/report"
	"github.com/ganot/wtmpdb/internal/repository"
	"github.com/ganot/wtmpdb/internal/repository/mocks"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, ledger wtmp.Ledger, logger *slog.Logger) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Ledger: ledger, Logger: logger, Version: "test"})
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		serverSession.Wait()
	})
	return session
}

func sampleSessions() []wtmp.Session {
	logout := wtmp.FromTime(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	return []wtmp.Session{
		{ID: 2, Type: wtmp.UserProcess, User: "alice", Login: wtmp.FromTime(time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)), Logout: &logout, TTY: "pts/0"},
		{ID: 1, Type: wtmp.BootTime, User: wtmp.UserReboot, Login: wtmp.FromTime(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)), TTY: wtmp.BootTTY},
	}
}

func TestResources(t *testing.T) {
	ledger := &mocks.Ledger{}
	ledger.On("ReadAll", mock.Anything).Return(sampleSessions(), nil)
	ledger.On("BootTime", mock.Anything).Return(wtmp.Usec(1_735_725_600_000_000), nil)

	session := connect(t, ledger, nil)
	ctx := context.Background()

	resources, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	uris := make(map[string]*sdkmcp.Resource)
	for _, r := range resources.Resources {
		uris[r.URI] = r
	}
	require.Contains(t, uris, SessionsURI)
	require.Contains(t, uris, BootTimeURI)
	require.Equal(t, "application/json", uris[SessionsURI].MIMEType)

	read, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: SessionsURI})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	var listing report.Listing
	require.NoError(t, json.Unmarshal([]byte(read.Contents[0].Text), &listing))
	require.Len(t, listing.Entries, 2)
	require.Equal(t, "alice", listing.Entries[0].User)
	require.Equal(t, "01:00", listing.Entries[0].Length)

	read, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: BootTimeURI})
	require.NoError(t, err)
	boot, err := time.Parse(isoTime, strings.TrimSpace(read.Contents[0].Text))
	require.NoError(t, err)
	require.True(t, boot.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestTools(t *testing.T) {
	ledger := &mocks.Ledger{}
	ledger.On("ReadAll", mock.Anything).Return(sampleSessions(), nil)
	ledger.On("BootTime", mock.Anything).Return(wtmp.Usec(0), repository.ErrNotFound)

	session := connect(t, ledger, nil)
	ctx := context.Background()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "last",
		Arguments: map[string]any{"limit": 1},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var listing report.Listing
	require.NoError(t, json.Unmarshal([]byte(text.Text), &listing))
	require.Len(t, listing.Entries, 1)

	result, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "boot_time", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.True(t, result.IsError, "no boot recorded")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTrafficLogging(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ledger := &mocks.Ledger{}
	ledger.On("ReadAll", mock.Anything).Return(sampleSessions(), nil)
	session := connect(t, ledger, logger)

	_, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: SessionsURI})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "mcp request")
	require.Contains(t, out, "mcp response")
	require.Contains(t, out, "method=resources/read")
	require.Contains(t, out, "direction=inbound")
}

func TestTrafficLogging_SkippedAboveDebug(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ledger := &mocks.Ledger{}
	ledger.On("BootTime", mock.Anything).Return(wtmp.Usec(0), repository.ErrNotFound)
	session := connect(t, ledger, logger)

	_, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: BootTimeURI})
	require.Error(t, err)
	require.NotContains(t, buf.String(), "mcp request")
}

func TestFormatPayload_Truncates(t *testing.T) {
	out := formatPayload(strings.Repeat("x", 3*maxLoggedPayload))
	require.Contains(t, out, "...(")
	require.Less(t, len(out), maxLoggedPayload+64)
	require.Equal(t, "<nil>", formatPayload(nil))
}
