package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LogWriter is a size-capped log file writer. When a write would push
// the file past its cap, the current file is retired to <path>.old,
// replacing the previous generation, and a fresh file is started. One
// live file plus one retired file is all the history an indexing tool
// needs.
type LogWriter struct {
	path string
	cap  int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewLogWriter opens (or creates) the log file at path, creating the
// parent directory if needed. capMB is the size in megabytes at which
// the file is retired.
func NewLogWriter(path string, capMB int) (*LogWriter, error) {
	w := &LogWriter{
		path: path,
		cap:  int64(capMB) << 20,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer, rolling the file over when the cap is
// reached. A failed rollover keeps appending to the oversized file
// rather than dropping log entries.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.cap {
		if err := w.roll(); err != nil {
			fmt.Fprintf(os.Stderr, "log rollover failed: %v\n", err)
		}
	}
	if w.file == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *LogWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// roll retires the current file to <path>.old and starts a new one.
// Must be called with the mutex held.
func (w *LogWriter) roll() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	w.file = nil

	old := w.path + ".old"
	_ = os.Remove(old)
	if err := os.Rename(w.path, old); err != nil {
		return fmt.Errorf("failed to retire log file: %w", err)
	}

	return w.open()
}
