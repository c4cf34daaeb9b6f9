package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "ledgerd", Environment: "test", Level: slog.LevelInfo})
	logger.Info("started", slog.String("listen", ":8080"))
	logger.Debug("hidden")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "started", entry["message"])
	require.Equal(t, "INFO", entry["severity"])
	require.Equal(t, "ledgerd", entry["service"])
	require.Equal(t, "test", entry["env"])
	require.Contains(t, entry, "timestamp")
	require.NotContains(t, entry, "msg")
}

func TestSetupWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerd.log")
	logger, closer := Setup(Options{Service: "ledgerd", Level: slog.LevelDebug, File: path, MaxSizeMB: 1})
	logger.Debug("to file")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}
