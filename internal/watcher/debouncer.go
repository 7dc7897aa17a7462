package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events so a burst of editor saves becomes
// one batch. Events for the same path within the window merge:
//
//	create + modify = create
//	create + delete = nothing
//	modify + delete = delete
//	delete + create = modify
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer emitting batches after the given
// quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 8),
	}
}

// Add records one event, merging it with any pending event for the
// same path, and (re)arms the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged := coalesce(existing, event)
		if merged == nil {
			// The events canceled out; the file never really existed.
			delete(d.pending, event.Path)
		} else {
			existing.event = *merged
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges a new event into a pending one. A nil result means
// both are dropped.
func coalesce(existing *pendingEvent, event FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch event.Operation {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		default:
			return &event
		}
	case OpDelete:
		if event.Operation == OpCreate {
			replaced := event
			replaced.Operation = OpModify
			return &replaced
		}
		return &event
	default:
		return &event
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of coalesced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop closes the output channel. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
