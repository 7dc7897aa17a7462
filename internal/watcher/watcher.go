// Package watcher keeps the index fresh by observing the project tree
// and triggering incremental passes after a quiet window. Events are
// debounced and coalesced per path so a burst of saves maps to one
// pass.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// Operation is the kind of file system change observed.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
	// OpConfigChange fires when the project config file changes so
	// the service can reload configuration before the next pass.
	OpConfigChange
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpConfigChange:
		return "config_change"
	default:
		return "unknown"
	}
}

// FileEvent is one observed change, path relative to the project root.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window before a batch is emitted.
	Debounce time.Duration

	// ExcludeDirs are directory names never watched.
	ExcludeDirs []string

	// Extensions are the file extensions worth reporting. Directory
	// events and config changes pass the filter regardless.
	Extensions []string

	// BufferSize is the capacity of the batch channel.
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	return o
}

// Watcher observes a project tree recursively through fsnotify and
// emits debounced event batches.
type Watcher struct {
	root        string
	fsw         *fsnotify.Watcher
	debouncer   *Debouncer
	excludeDirs map[string]struct{}
	extensions  map[string]struct{}
	logger      *slog.Logger

	events chan []FileEvent
	errs   chan error
	stopCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a Watcher rooted at the given project directory.
func New(root string, opts Options, logger *slog.Logger) (*Watcher, error) {
	opts = opts.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, synerr.New(synerr.ErrCodeRootNotFound, "invalid project root", err)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return nil, synerr.New(synerr.ErrCodeRootNotFound, "project root not found", err).
			WithDetail("root", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, synerr.New(synerr.ErrCodeInternal, "failed to create file watcher", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		root:        absRoot,
		fsw:         fsw,
		debouncer:   NewDebouncer(opts.Debounce),
		excludeDirs: make(map[string]struct{}, len(opts.ExcludeDirs)),
		extensions:  make(map[string]struct{}, len(opts.Extensions)),
		logger:      logger,
		events:      make(chan []FileEvent, opts.BufferSize),
		errs:        make(chan error, 8),
		stopCh:      make(chan struct{}),
	}
	for _, d := range opts.ExcludeDirs {
		w.excludeDirs[d] = struct{}{}
	}
	for _, ext := range opts.Extensions {
		w.extensions[strings.ToLower(ext)] = struct{}{}
	}
	return w, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Events returns the channel of debounced event batches. It is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start watches the tree until the context is canceled or Stop is
// called. It blocks; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return synerr.New(synerr.ErrCodeInternal, "failed to watch project tree", err)
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	close(w.stopCh)
	w.debouncer.Stop()
	_ = w.fsw.Close()
	close(w.events)
	close(w.errs)
	return nil
}

// addRecursive registers every non-excluded directory under root.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			if _, excluded := w.excludeDirs[d.Name()]; excluded {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

// handle converts one fsnotify event, filters it and feeds the
// debouncer.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return
	}

	for _, segment := range strings.Split(rel, "/") {
		if _, excluded := w.excludeDirs[segment]; excluded {
			return
		}
	}

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	base := filepath.Base(ev.Name)
	if base == ".synapse.yaml" || base == ".synapse.yml" {
		w.debouncer.Add(FileEvent{
			Path:      rel,
			Operation: OpConfigChange,
			Timestamp: time.Now(),
		})
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories join the watch set so files created inside
		// them are seen.
		if isDir {
			_ = w.fsw.Add(ev.Name)
			return
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	if !isDir {
		ext := strings.ToLower(filepath.Ext(rel))
		if _, ok := w.extensions[ext]; !ok {
			return
		}
	}

	w.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// forward moves debounced batches to the public channel.
func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			w.emit(batch)
		}
	}
}

// emit holds the mutex through the non-blocking send so Stop cannot
// close the channel underneath it.
func (w *Watcher) emit(batch []FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		w.logger.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	select {
	case w.errs <- err:
	default:
	}
}
