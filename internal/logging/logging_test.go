package logging

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"mixed case", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestLogPath(t *testing.T) {
	root := filepath.Join("some", "project")
	assert.Equal(t, filepath.Join(root, ".synapse", "logs"), LogDir(root))
	assert.Equal(t, filepath.Join(root, ".synapse", "logs", "synapse.log"), LogPath(root))
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:         "debug",
		FilePath:      filepath.Join(dir, "synapse.log"),
		MaxSizeMB:     1,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Info("indexing started", slog.String("root", dir), slog.Int("files", 3))
	cleanup()

	f, err := os.Open(cfg.FilePath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected at least one log line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "indexing started", entry["msg"])
	assert.Equal(t, dir, entry["root"])
	assert.Equal(t, float64(3), entry["files"])
}

func TestSetup_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:         "warn",
		FilePath:      filepath.Join(dir, "synapse.log"),
		MaxSizeMB:     1,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestSetup_NoFilePath(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	cleanup()
}

func TestLogWriter_Rollover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synapse.log")

	w, err := NewLogWriter(path, 1)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	// Pretend the file is already at the cap.
	w.mu.Lock()
	w.size = w.cap
	w.mu.Unlock()

	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err, "retired file should exist")
	assert.Equal(t, "first\n", string(old))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestLogWriter_RolloverReplacesPreviousGeneration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synapse.log")

	w, err := NewLogWriter(path, 1)
	require.NoError(t, err)
	defer w.Close()

	for _, line := range []string{"one\n", "two\n", "three\n"} {
		w.mu.Lock()
		w.size = w.cap
		w.mu.Unlock()
		_, err = w.Write([]byte(line))
		require.NoError(t, err)
	}

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(old), "only the latest retired generation is kept")

	entries, err := filepath.Glob(path + "*")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one live file and one retired file")
}
