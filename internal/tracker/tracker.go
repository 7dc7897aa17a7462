// Package tracker detects file changes between indexing passes.
//
// It keeps a per-file fingerprint (content hash, mtime, size) persisted
// under the project's .synapse directory and classifies the current
// filesystem snapshot into added/modified/deleted/unchanged relative to
// the previous pass. Hashing is skipped for files whose mtime and size
// both match the stored fingerprint, so unchanged files cost one stat.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// SnapshotFile is the fingerprint snapshot filename inside .synapse.
const SnapshotFile = "fingerprints.json"

// snapshotVersion identifies the on-disk snapshot format.
const snapshotVersion = "1.0"

// Fingerprint records a file's last-known indexed state.
//
// Hash always corresponds to the file content at the moment it was
// last read successfully.
type Fingerprint struct {
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	MTime int64  `json:"mtime"` // Unix nanoseconds
	Size  int64  `json:"size"`
}

// ChangeSet partitions the current file list against the stored
// fingerprints. The four sets are pairwise disjoint; added, modified
// and unchanged together cover the current file list, and deleted is
// the stored paths absent from it.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// HasChanges reports whether any file was added, modified or deleted.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Added) > 0 || len(cs.Modified) > 0 || len(cs.Deleted) > 0
}

// TotalChanged returns the number of files needing reindexing work.
func (cs *ChangeSet) TotalChanged() int {
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// snapshot is the persisted form of the tracker state.
type snapshot struct {
	Version   string                  `json:"version"`
	UpdatedAt string                  `json:"updatedAt"`
	Files     map[string]*Fingerprint `json:"files"`
}

// Tracker owns the fingerprint store for one project.
//
// The indexing orchestrator has exclusive write access during a pass;
// the mutex only guards against a concurrent status read.
type Tracker struct {
	dir  string // .synapse directory
	path string // snapshot file path

	mu    sync.RWMutex
	files map[string]*Fingerprint
}

// New creates a Tracker rooted at the given .synapse directory and
// loads any existing snapshot. A corrupt snapshot is discarded and the
// tracker starts empty.
func New(synapseDir string) *Tracker {
	t := &Tracker{
		dir:   synapseDir,
		path:  filepath.Join(synapseDir, SnapshotFile),
		files: make(map[string]*Fingerprint),
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt snapshot: start fresh, next pass rebuilds it.
		t.files = make(map[string]*Fingerprint)
		return
	}
	if snap.Files != nil {
		t.files = snap.Files
	}
}

// Save persists the fingerprint snapshot atomically.
func (t *Tracker) Save() error {
	t.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Files:     t.files,
	}
	data, err := json.MarshalIndent(&snap, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return synerr.PersistenceFailure("fingerprint snapshot", err)
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return synerr.PersistenceFailure("fingerprint snapshot", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return synerr.PersistenceFailure("fingerprint snapshot", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return synerr.PersistenceFailure("fingerprint snapshot", err)
	}
	return nil
}

// ComputeHash returns the hex SHA-256 of the file's content.
func ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Classify diffs the current file list against the stored fingerprints.
//
// Unreadable files are skipped for this pass; their stored fingerprint
// is kept as-is and they are revisited next pass. A file whose mtime
// or size differs but whose hash matches (a bare touch) is classified
// unchanged with its stored mtime refreshed. Added and modified files
// have their new fingerprints stored immediately.
func (t *Tracker) Classify(currentFiles []string) *ChangeSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs := &ChangeSet{}

	current := make(map[string]struct{}, len(currentFiles))
	for _, p := range currentFiles {
		current[p] = struct{}{}
	}

	for p := range t.files {
		if _, ok := current[p]; !ok {
			cs.Deleted = append(cs.Deleted, p)
		}
	}
	sort.Strings(cs.Deleted)

	for _, p := range currentFiles {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		mtime := info.ModTime().UnixNano()
		size := info.Size()

		stored, exists := t.files[p]
		if !exists {
			hash, err := ComputeHash(p)
			if err != nil {
				continue
			}
			t.files[p] = &Fingerprint{Path: p, Hash: hash, MTime: mtime, Size: size}
			cs.Added = append(cs.Added, p)
			continue
		}

		// Cheap tier: identical mtime and size means no hashing.
		if mtime == stored.MTime && size == stored.Size {
			cs.Unchanged = append(cs.Unchanged, p)
			continue
		}

		// Metadata differs: the hash decides.
		hash, err := ComputeHash(p)
		if err != nil {
			continue
		}
		t.files[p] = &Fingerprint{Path: p, Hash: hash, MTime: mtime, Size: size}
		if hash != stored.Hash {
			cs.Modified = append(cs.Modified, p)
		} else {
			cs.Unchanged = append(cs.Unchanged, p)
		}
	}

	return cs
}

// Update refreshes the stored fingerprint for a single file.
func (t *Tracker) Update(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	hash, err := ComputeHash(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.files[path] = &Fingerprint{
		Path:  path,
		Hash:  hash,
		MTime: info.ModTime().UnixNano(),
		Size:  info.Size(),
	}
	t.mu.Unlock()
	return nil
}

// Remove drops the stored fingerprint for a deleted file.
func (t *Tracker) Remove(path string) {
	t.mu.Lock()
	delete(t.files, path)
	t.mu.Unlock()
}

// Clear resets all tracked state. Used before a full reindex.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	t.files = make(map[string]*Fingerprint)
	t.mu.Unlock()

	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return synerr.PersistenceFailure("fingerprint snapshot", err)
	}
	return nil
}

// Count returns the number of tracked files.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Get returns the stored fingerprint for a path, if any.
func (t *Tracker) Get(path string) (*Fingerprint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fp, ok := t.files[path]
	return fp, ok
}
