// Package logging configures structured logging for the indexing
// pipeline and retrieval engine. Logs are JSON-encoded via log/slog and
// written to a size-capped file under the project's .synapse/logs/
// directory, optionally mirrored to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the size in MB at which the log file is retired
	// to its .old generation (default: 10).
	MaxSizeMB int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for file logging rooted at
// the given project directory.
func DefaultConfig(root string) Config {
	return Config{
		Level:         "info",
		FilePath:      LogPath(root),
		MaxSizeMB:     10,
		WriteToStderr: true,
	}
}

// LogDir returns the log directory for a project root.
func LogDir(root string) string {
	return filepath.Join(root, ".synapse", "logs")
}

// LogPath returns the pipeline log path for a project root.
func LogPath(root string) string {
	return filepath.Join(LogDir(root), "synapse.log")
}

// Setup initializes logging and returns the configured logger along
// with a cleanup function that flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	// No file output requested: stderr only.
	if cfg.FilePath == "" {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
		return logger, func() {}, nil
	}

	writer, err := NewLogWriter(cfg.FilePath, cfg.MaxSizeMB)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(output, opts))

	cleanup := func() {
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

// SetupDefault configures logging for the given project root and
// installs the logger as the process default. Returns cleanup function.
func SetupDefault(root, level string) (func(), error) {
	cfg := DefaultConfig(root)
	if level != "" {
		cfg.Level = level
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
