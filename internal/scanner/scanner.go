// Package scanner discovers indexable source files in a project tree.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// DefaultMaxFileSize is the scan size limit when none is configured.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// Options configures a scan.
type Options struct {
	// ExcludeDirs are directory names skipped entirely.
	ExcludeDirs []string
	// Extensions are the recognized file extensions (with dot).
	Extensions []string
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// Scanner walks a project tree collecting files eligible for
// indexing. Symlinks are not followed and oversized or unreadable
// entries are skipped with a debug log.
type Scanner struct {
	root        string
	excludeDirs map[string]struct{}
	extensions  map[string]struct{}
	maxFileSize int64
	logger      *slog.Logger
}

// New creates a Scanner for the given project root.
func New(root string, opts Options, logger *slog.Logger) (*Scanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, synerr.New(synerr.ErrCodeRootNotFound, "invalid project root", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, synerr.New(synerr.ErrCodeRootNotFound, "project root not found", err).
			WithDetail("root", root)
	}
	if !info.IsDir() {
		return nil, synerr.New(synerr.ErrCodeRootNotFound, "project root is not a directory", nil).
			WithDetail("root", root)
	}

	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	s := &Scanner{
		root:        absRoot,
		excludeDirs: make(map[string]struct{}, len(opts.ExcludeDirs)),
		extensions:  make(map[string]struct{}, len(opts.Extensions)),
		maxFileSize: maxSize,
		logger:      logger,
	}
	for _, d := range opts.ExcludeDirs {
		s.excludeDirs[d] = struct{}{}
	}
	for _, ext := range opts.Extensions {
		s.extensions[strings.ToLower(ext)] = struct{}{}
	}
	return s, nil
}

// Root returns the absolute project root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the tree and returns relative slash-separated paths of
// all eligible files, sorted for deterministic processing order.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Unreadable entries are revisited next pass.
			s.logger.Debug("skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}

		if d.IsDir() {
			if path != s.root {
				if _, excluded := s.excludeDirs[d.Name()]; excluded {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := s.extensions[ext]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > s.maxFileSize {
			s.logger.Debug("skipping oversized file",
				slog.String("path", path),
				slog.Int64("size", info.Size()),
				slog.Int64("limit", s.maxFileSize))
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Abs resolves a scan-relative path back to an absolute one.
func (s *Scanner) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}
