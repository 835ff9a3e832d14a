package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultConfig(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, New(nil))
}

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelInfo})

	logger.Info("test message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "ts")
	assert.NotContains(t, entry, "time")
	assert.Contains(t, entry, "level")
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNew_DebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&Config{Output: &buf, Debug: true}).Debug("debug message")
	assert.Contains(t, buf.String(), "debug message")
}

func TestNew_InfoLevel_HidesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&Config{Output: &buf, Level: slog.LevelInfo}).Debug("debug message")
	assert.NotContains(t, buf.String(), "debug message")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "fuzz.log")
	f, err := OpenFile(path)
	require.NoError(t, err)

	New(&Config{Output: f}).Info("to file")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestLogHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Debug: true})

	LogStartup(logger, StartupInfo{Version: "1.0.0", Command: "search", Engine: "builtin", Root: "/w"})
	LogSearchFailed(logger, "foo", errors.New("boom"))
	LogConfigIgnored(logger, "/c.yaml", errors.New("bad yaml"))

	out := buf.String()
	assert.Contains(t, out, `"msg":"fuzz started"`)
	assert.Contains(t, out, `"engine":"builtin"`)
	assert.Contains(t, out, `"msg":"search failed"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"config_path":"/c.yaml"`)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	Discard().Error("nothing")
}
