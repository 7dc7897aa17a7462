package watcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// StatusFile is the watch daemon's status record inside .synapse.
const StatusFile = "watcher_status.json"

// PassFunc runs one incremental indexing pass.
type PassFunc func(ctx context.Context) error

// Status is the persisted daemon state for downstream reporting.
type Status struct {
	Status      string `json:"status"`
	StartedAt   string `json:"startedAt"`
	LastEventAt string `json:"lastEventAt,omitempty"`
	LastPassAt  string `json:"lastPassAt,omitempty"`
	Passes      int    `json:"passes"`
	LastError   string `json:"lastError,omitempty"`
	PID         int    `json:"pid"`
}

// LoadStatus reads the persisted daemon status, if any.
func LoadStatus(synapseDir string) (*Status, error) {
	data, err := os.ReadFile(filepath.Join(synapseDir, StatusFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, synerr.New(synerr.ErrCodeNodeNotFound, "no watcher status found", err)
		}
		return nil, synerr.PersistenceFailure("watcher status", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, synerr.New(synerr.ErrCodeCorruptState, "watcher status is corrupt", err)
	}
	return &s, nil
}

// Service couples a Watcher to the indexing pipeline: every debounced
// batch triggers one incremental pass, and a status record is kept
// up to date in the state directory.
type Service struct {
	watcher    *Watcher
	pass       PassFunc
	reload     func() error
	statusPath string
	logger     *slog.Logger

	status Status
}

// NewService creates a Service writing its status under synapseDir.
func NewService(w *Watcher, synapseDir string, pass PassFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		watcher:    w,
		pass:       pass,
		statusPath: filepath.Join(synapseDir, StatusFile),
		logger:     logger,
	}
}

// OnConfigChange registers a function invoked when a batch contains a
// config file change, before the pass for that batch runs. Must be
// called before Run.
func (s *Service) OnConfigChange(fn func() error) {
	s.reload = fn
}

// Run watches until the context is canceled. Pass failures are logged
// and recorded in the status file; the service keeps running.
func (s *Service) Run(ctx context.Context) error {
	s.status = Status{
		Status:    "watching",
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		PID:       os.Getpid(),
	}
	if err := s.writeStatus(); err != nil {
		return err
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- s.watcher.Start(ctx)
	}()

	defer func() {
		_ = s.watcher.Stop()
		s.status.Status = "stopped"
		if err := s.writeStatus(); err != nil {
			s.logger.Warn("failed to write final watcher status",
				slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watchErr:
			if err != nil && ctx.Err() == nil {
				return err
			}
			return ctx.Err()
		case err, ok := <-s.watcher.Errors():
			if !ok {
				continue
			}
			s.logger.Warn("watcher_error", slog.String("error", err.Error()))
		case batch, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			s.handleBatch(ctx, batch)
		}
	}
}

func (s *Service) handleBatch(ctx context.Context, batch []FileEvent) {
	now := time.Now().UTC().Format(time.RFC3339)
	s.status.LastEventAt = now

	s.logger.Info("watch_batch",
		slog.Int("events", len(batch)),
		slog.String("first", batch[0].Path))

	if s.reload != nil && hasConfigChange(batch) {
		if err := s.reload(); err != nil {
			// Keep the previous configuration for this pass.
			s.logger.Warn("config_reload_failed", slog.String("error", err.Error()))
		} else {
			s.logger.Info("config_reloaded")
		}
	}

	if err := s.pass(ctx); err != nil {
		s.status.LastError = err.Error()
		s.logger.Error("watch_pass_failed", slog.String("error", err.Error()))
	} else {
		s.status.LastError = ""
		s.status.LastPassAt = time.Now().UTC().Format(time.RFC3339)
		s.status.Passes++
	}

	if err := s.writeStatus(); err != nil {
		s.logger.Warn("failed to write watcher status",
			slog.String("error", err.Error()))
	}
}

func hasConfigChange(batch []FileEvent) bool {
	for _, ev := range batch {
		if ev.Operation == OpConfigChange {
			return true
		}
	}
	return false
}

func (s *Service) writeStatus() error {
	data, err := json.MarshalIndent(&s.status, "", "  ")
	if err != nil {
		return synerr.PersistenceFailure("watcher status", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.statusPath), 0o755); err != nil {
		return synerr.PersistenceFailure("watcher status", err)
	}

	tmp := s.statusPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return synerr.PersistenceFailure("watcher status", err)
	}
	if err := os.Rename(tmp, s.statusPath); err != nil {
		os.Remove(tmp)
		return synerr.PersistenceFailure("watcher status", err)
	}
	return nil
}
