package index

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// passLock is a cross-process lock guarding the .synapse state files.
// Only one indexing pass may write them at a time; a second process
// gets ErrCodeIndexLocked instead of corrupting a half-written index.
type passLock struct {
	fl *flock.Flock
}

func newPassLock(synapseDir string) *passLock {
	return &passLock{fl: flock.New(filepath.Join(synapseDir, lockFile))}
}

// Acquire takes the lock without blocking. The lock file is created if
// missing.
func (l *passLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return synerr.PersistenceFailure("index lock", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return synerr.PersistenceFailure("index lock", err)
	}
	if !ok {
		return synerr.New(synerr.ErrCodeIndexLocked,
			"another indexing pass holds the lock", nil).
			WithDetail("lock", l.fl.Path())
	}
	return nil
}

func (l *passLock) Release() {
	_ = l.fl.Unlock()
}
