package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuanArchive/synapse-ai-context/internal/index"
	"github.com/YuanArchive/synapse-ai-context/internal/store"
	"github.com/YuanArchive/synapse-ai-context/internal/watcher"
)

func TestWatcherDrivesIncrementalIndexing(t *testing.T) {
	root := t.TempDir()
	write(t, root, "app.py", "def main():\n    pass\n")

	p := newPipeline(t, root)
	_, err := p.runner.Full(context.Background())
	require.NoError(t, err)

	w, err := watcher.New(root, watcher.Options{
		Debounce:    50 * time.Millisecond,
		ExcludeDirs: p.cfg.Paths.ExcludeDirs,
		Extensions:  p.cfg.Paths.Extensions,
	}, nil)
	require.NoError(t, err)

	svc := watcher.NewService(w, index.Dir(root), func(ctx context.Context) error {
		_, err := p.runner.Incremental(ctx)
		return err
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	write(t, root, "extra.py", "def extra():\n    pass\n")

	require.Eventually(t, func() bool {
		return p.graph.HasNode("extra.py")
	}, 5*time.Second, 50*time.Millisecond, "watcher should index the new file")

	assert.True(t, p.store.Contains(store.FileID("extra.py")))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch service did not stop")
	}

	status, err := watcher.LoadStatus(index.Dir(root))
	require.NoError(t, err)
	assert.Equal(t, "stopped", status.Status)
	assert.GreaterOrEqual(t, status.Passes, 1)
}

func TestWatcherDeleteRemovesFromIndex(t *testing.T) {
	root := t.TempDir()
	write(t, root, "keep.py", "def keep():\n    pass\n")
	write(t, root, "gone.py", "def gone():\n    pass\n")

	p := newPipeline(t, root)
	_, err := p.runner.Full(context.Background())
	require.NoError(t, err)
	require.True(t, p.graph.HasNode("gone.py"))

	w, err := watcher.New(root, watcher.Options{
		Debounce:    50 * time.Millisecond,
		ExcludeDirs: p.cfg.Paths.ExcludeDirs,
		Extensions:  p.cfg.Paths.Extensions,
	}, nil)
	require.NoError(t, err)

	svc := watcher.NewService(w, index.Dir(root), func(ctx context.Context) error {
		_, err := p.runner.Incremental(ctx)
		return err
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.py")))

	require.Eventually(t, func() bool {
		return !p.graph.HasNode("gone.py")
	}, 5*time.Second, 50*time.Millisecond, "watcher should remove the deleted file")

	assert.False(t, p.store.Contains(store.FileID("gone.py")))
	assert.True(t, p.graph.HasNode("keep.py"))
}
