package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, Options{
		Debounce:    30 * time.Millisecond,
		ExcludeDirs: []string{".git", ".synapse", "node_modules"},
		Extensions:  []string{".py", ".go"},
	}, nil)
	require.NoError(t, err)
	return w
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()
	// Give the recursive add a moment to settle before mutating.
	time.Sleep(50 * time.Millisecond)
}

func collectBatch(t *testing.T, w *Watcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("no event batch received")
		return nil
	}
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), Options{}, nil)
	require.Error(t, err)
	assert.True(t, synerr.HasCode(err, synerr.ErrCodeRootNotFound))
}

func TestWatcher_ReportsSourceFileWrite(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("def main():\n    pass\n"), 0o644))

	batch := collectBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "app.py", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestWatcher_IgnoresUnrecognizedExtension(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))

	select {
	case batch := <-w.Events():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresExcludedDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".synapse"), 0o755))

	w := newTestWatcher(t, root)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapse", "state.py"), []byte("x = 1\n"), 0o644))

	select {
	case batch := <-w.Events():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_SeesFilesInNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startWatcher(t, w)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Let the new directory join the watch set.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.py"), []byte("def f():\n    pass\n"), 0o644))

	batch := collectBatch(t, w)
	found := false
	for _, ev := range batch {
		if ev.Path == "pkg/mod.py" {
			found = true
		}
	}
	assert.True(t, found, "expected pkg/mod.py in %v", batch)
}

func TestWatcher_ConfigChangeEvent(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapse.yaml"), []byte("search:\n  alpha: 0.8\n"), 0o644))

	batch := collectBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, OpConfigChange, batch[0].Operation)
}

func TestWatcher_StopTwice(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startWatcher(t, w)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestService_TriggersPassAndWritesStatus(t *testing.T) {
	root := t.TempDir()
	synapseDir := filepath.Join(root, ".synapse")
	require.NoError(t, os.MkdirAll(synapseDir, 0o755))

	w := newTestWatcher(t, root)

	var passes atomic.Int64
	svc := NewService(w, synapseDir, func(context.Context) error {
		passes.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("def main():\n    pass\n"), 0o644))

	require.Eventually(t, func() bool {
		return passes.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	status, err := LoadStatus(synapseDir)
	require.NoError(t, err)
	assert.Equal(t, "watching", status.Status)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}

	status, err = LoadStatus(synapseDir)
	require.NoError(t, err)
	assert.Equal(t, "stopped", status.Status)
	assert.GreaterOrEqual(t, status.Passes, 1)
}

func TestService_ReloadsConfigBeforePass(t *testing.T) {
	root := t.TempDir()
	synapseDir := filepath.Join(root, ".synapse")
	require.NoError(t, os.MkdirAll(synapseDir, 0o755))

	w := newTestWatcher(t, root)

	var sequence atomic.Int64 // 1 = reload seen, 2 = reload then pass
	svc := NewService(w, synapseDir, func(context.Context) error {
		if sequence.Load() == 1 {
			sequence.Store(2)
		}
		return nil
	}, nil)
	svc.OnConfigChange(func() error {
		sequence.CompareAndSwap(0, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapse.yaml"), []byte("search:\n  max_results: 9\n"), 0o644))

	require.Eventually(t, func() bool {
		return sequence.Load() == 2
	}, 3*time.Second, 20*time.Millisecond, "reload should run before the batch's pass")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestLoadStatus_Missing(t *testing.T) {
	_, err := LoadStatus(t.TempDir())
	require.Error(t, err)
	assert.True(t, synerr.HasCode(err, synerr.ErrCodeNodeNotFound))
}
