package command

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// isolate keeps host configuration and a host daemon out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("WTMPDB_CONFIG_PATH", "")
	t.Setenv("WTMPDB_FILE", "")
	t.Setenv("WTMPDB_DAEMON_SOCKET_DIR", filepath.Join(t.TempDir(), "run"))
	t.Setenv("WTMPDB_DB_PATH", filepath.Join(t.TempDir(), "wtmp.db"))
}

func run(t *testing.T, app *cli.App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{app.Name}, args...))
	return out.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	require.Equal(t, "wtmpdb", app.Name)
	require.NotEmpty(t, app.Usage)

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"last", "boot", "boottime", "shutdown", "log", "rotate", "import", "mcp"} {
		require.True(t, names[name], "missing command %s", name)
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	names := make(map[string]bool)
	for _, flag := range App().Flags {
		names[flag.Names()[0]] = true
	}
	for _, name := range []string{"file", "config", "log-level"} {
		require.True(t, names[name], "missing flag %s", name)
	}
}

func TestApp_BeforeStoresEnv(t *testing.T) {
	isolate(t)
	app := App()
	app.Metadata = make(map[string]any)

	ctx := cli.NewContext(app, nil, nil)
	require.NoError(t, app.Before(ctx))

	env := GetEnv(ctx)
	require.NotNil(t, env.Logger)
	require.Equal(t, "info", env.Config.Log.Level)
}

func TestApp_InvalidLogLevel(t *testing.T) {
	isolate(t)
	_, err := run(t, App(), "--log-level", "loud", "last")
	require.ErrorContains(t, err, "log.level")
}

func TestApp_MissingConfigFile(t *testing.T) {
	isolate(t)
	_, err := run(t, App(), "--config", filepath.Join(t.TempDir(), "absent.yaml"), "last")
	require.Error(t, err)
}

func TestApp_LogPath(t *testing.T) {
	isolate(t)
	logPath := filepath.Join(t.TempDir(), "logs", "wtmpdb.log")
	t.Setenv("WTMPDB_LOG_PATH", logPath)
	t.Setenv("WTMPDB_LOG_LEVEL", "debug")
	db := filepath.Join(t.TempDir(), "wtmp.db")

	_, err := run(t, App(), "-f", db, "log", "--tty", "pts/1", "--user", "alice")
	require.NoError(t, err)
	require.FileExists(t, logPath)
}

func TestGetEnv_WithoutSetup(t *testing.T) {
	app := App()
	ctx := cli.NewContext(app, nil, nil)
	require.NotNil(t, GetEnv(ctx).Logger)
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug").String())
	require.Equal(t, "WARN", parseLogLevel("warn").String())
	require.Equal(t, "ERROR", parseLogLevel("error").String())
	require.Equal(t, "INFO", parseLogLevel("anything").String())
}
