// Package index orchestrates indexing passes: scanning the project
// tree, classifying changes, extracting symbols across a worker pool,
// aggregating results into the dependency graph and embedding index,
// and persisting everything to the .synapse state directory.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuanArchive/synapse-ai-context/internal/config"
	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
	"github.com/YuanArchive/synapse-ai-context/internal/graph"
	"github.com/YuanArchive/synapse-ai-context/internal/parse"
	"github.com/YuanArchive/synapse-ai-context/internal/scanner"
	"github.com/YuanArchive/synapse-ai-context/internal/store"
	"github.com/YuanArchive/synapse-ai-context/internal/tracker"
)

// File names inside the .synapse state directory.
const (
	DirName     = ".synapse"
	GraphFile   = "graph.json"
	VectorFile  = "index.hnsw"
	SummaryFile = "context.json"

	lockFile = ".index.lock"
)

// Dir returns the state directory for a project root.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// State is the current stage of an indexing pass.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateClassifying
	StateExtracting
	StateAggregating
	StateResolving
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateClassifying:
		return "classifying"
	case StateExtracting:
		return "extracting"
	case StateAggregating:
		return "aggregating"
	case StateResolving:
		return "resolving"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dependencies are the injected collaborators for a Runner.
type Dependencies struct {
	// Config is the loaded project configuration (required).
	Config *config.Config

	// Scanner walks the project tree (required).
	Scanner *scanner.Scanner

	// Tracker owns the fingerprint snapshot (required).
	Tracker *tracker.Tracker

	// Graph is the dependency graph updated by the pass (required).
	Graph *graph.Graph

	// Store is the embedding index updated by the pass (required).
	Store *store.DocumentStore

	// Registry maps extensions to extractors. Defaults to the built-in
	// registry when nil.
	Registry *parse.Registry

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Runner executes indexing passes over injected dependencies.
type Runner struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	tracker  *tracker.Tracker
	graph    *graph.Graph
	store    *store.DocumentStore
	registry *parse.Registry
	logger   *slog.Logger

	synapseDir string

	mu    sync.Mutex
	state State
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if deps.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}

	registry := deps.Registry
	if registry == nil {
		registry = parse.NewRegistry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg:        deps.Config,
		scanner:    deps.Scanner,
		tracker:    deps.Tracker,
		graph:      deps.Graph,
		store:      deps.Store,
		registry:   registry,
		logger:     logger,
		synapseDir: Dir(deps.Scanner.Root()),
		state:      StateIdle,
	}, nil
}

// State returns the current pass state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.logger.Debug("index_state", slog.String("state", s.String()))
}

// Result is the outcome of one indexing pass.
type Result struct {
	// Incremental reports which kind of pass ran.
	Incremental bool

	// FilesAnalyzed is the number of files aggregated this pass.
	FilesAnalyzed int

	// FilesSkipped counts files dropped on read or parse failure.
	FilesSkipped int

	// Changes is the classification outcome (incremental passes only).
	Changes *tracker.ChangeSet

	// Documents is the embedding index size after the pass.
	Documents int

	// GraphNodes and GraphEdges are the graph size after the pass.
	GraphNodes int
	GraphEdges int

	Duration time.Duration
}

// Summary is the persisted pass record, written last so downstream
// tools can detect a crash between graph-save and summary-save.
type Summary struct {
	Status           string `json:"status"`
	FilesAnalyzed    *int   `json:"filesAnalyzed,omitempty"`
	ChangedFiles     *int   `json:"changedFiles,omitempty"`
	DocumentsIndexed int    `json:"documentsIndexed"`
	GraphNodes       int    `json:"graphNodes"`
	GraphEdges       int    `json:"graphEdges"`
	GraphPath        string `json:"graphPath"`
	UpdatedAt        string `json:"updatedAt"`
}

// LoadSummary reads the persisted pass summary, if any.
func LoadSummary(synapseDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(synapseDir, SummaryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, synerr.New(synerr.ErrCodeNodeNotFound, "no index summary found", err)
		}
		return nil, synerr.PersistenceFailure("index summary", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, synerr.New(synerr.ErrCodeCorruptState, "index summary is corrupt", err)
	}
	return &s, nil
}

// Full runs a complete pass: every scanned file is re-extracted and
// the fingerprint snapshot is rebuilt from scratch.
func (r *Runner) Full(ctx context.Context) (*Result, error) {
	return r.run(ctx, false)
}

// Incremental runs a pass over only the files the tracker classifies
// as added, modified or deleted since the last pass.
func (r *Runner) Incremental(ctx context.Context) (*Result, error) {
	return r.run(ctx, true)
}

// extraction pairs a file's analysis with its source text, which the
// aggregation stage embeds as the file-level document.
type extraction struct {
	analysis *parse.FileAnalysis
	source   string
}

func (r *Runner) run(ctx context.Context, incremental bool) (*Result, error) {
	start := time.Now()

	lock := newPassLock(r.synapseDir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	res, err := r.pass(ctx, incremental)
	if err != nil {
		r.setState(StateFailed)
		r.logger.Error("index_pass_failed",
			slog.Bool("incremental", incremental),
			slog.String("error", err.Error()))
		return nil, err
	}

	res.Duration = time.Since(start)
	r.setState(StateDone)
	r.logger.Info("index_pass_complete",
		slog.Bool("incremental", incremental),
		slog.Int("files", res.FilesAnalyzed),
		slog.Int("skipped", res.FilesSkipped),
		slog.Int("documents", res.Documents),
		slog.Int("graph_nodes", res.GraphNodes),
		slog.Int("graph_edges", res.GraphEdges),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (r *Runner) pass(ctx context.Context, incremental bool) (*Result, error) {
	res := &Result{Incremental: incremental}

	r.setState(StateScanning)
	relPaths, err := r.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	r.setState(StateClassifying)
	if !incremental {
		if err := r.tracker.Clear(); err != nil {
			return nil, err
		}
	}
	absPaths := make([]string, len(relPaths))
	for i, p := range relPaths {
		absPaths[i] = r.scanner.Abs(p)
	}
	changes := r.tracker.Classify(absPaths)
	if incremental {
		res.Changes = changes
		r.logger.Info("index_changes",
			slog.Int("added", len(changes.Added)),
			slog.Int("modified", len(changes.Modified)),
			slog.Int("deleted", len(changes.Deleted)),
			slog.Int("unchanged", len(changes.Unchanged)))
	}

	var toProcess []string
	for _, p := range changes.Added {
		toProcess = append(toProcess, r.rel(p))
	}
	for _, p := range changes.Modified {
		toProcess = append(toProcess, r.rel(p))
	}
	sort.Strings(toProcess)

	r.setState(StateExtracting)
	extractions, skipped, err := r.extract(ctx, toProcess)
	if err != nil {
		return nil, err
	}
	res.FilesSkipped = skipped

	r.setState(StateAggregating)

	// Stale state removal runs before any fresh aggregation so old
	// edges and documents never coexist with new ones.
	for _, abs := range changes.Deleted {
		rel := r.rel(abs)
		r.removeFileState(rel)
		r.tracker.Remove(abs)
	}
	for _, abs := range changes.Modified {
		r.removeFileState(r.rel(abs))
	}

	for _, ex := range extractions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.aggregate(ctx, ex); err != nil {
			if synerr.IsFatal(err) {
				return nil, err
			}
			// Keep the file out of the graph and retry it next pass.
			r.tracker.Remove(r.scanner.Abs(ex.analysis.Path))
			res.FilesSkipped++
			r.logger.Warn("aggregate_failed",
				slog.String("path", ex.analysis.Path),
				slog.String("error", err.Error()))
			continue
		}
		res.FilesAnalyzed++
	}

	r.setState(StateResolving)
	r.graph.ResolveReferences()

	r.setState(StatePersisting)
	if err := r.persist(res, incremental); err != nil {
		return nil, err
	}

	res.Documents = r.store.Count()
	res.GraphNodes = r.graph.NodeCount()
	res.GraphEdges = r.graph.EdgeCount()
	return res, nil
}

// extract runs the worker pool over the to-be-processed files. Each
// worker owns its own parser; results are fanned in under a mutex and
// sorted by path so aggregation order is deterministic. The returned
// int counts files skipped on read or parse failure.
func (r *Runner) extract(ctx context.Context, relPaths []string) ([]*extraction, int, error) {
	if len(relPaths) == 0 {
		return nil, 0, nil
	}

	workers := r.cfg.Index.Workers
	if workers > len(relPaths) {
		workers = len(relPaths)
	}

	var (
		mu          sync.Mutex
		extractions []*extraction
		skipped     int
	)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string)

	g.Go(func() error {
		defer close(jobs)
		for _, rel := range relPaths {
			select {
			case jobs <- rel:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			parser := parse.NewParser(r.registry)
			defer parser.Close()

			for rel := range jobs {
				source, err := os.ReadFile(r.scanner.Abs(rel))
				if err != nil {
					mu.Lock()
					skipped++
					mu.Unlock()
					r.logger.Warn("extract_read_failed",
						slog.String("path", rel),
						slog.String("error", err.Error()))
					continue
				}

				analysis, err := parser.Analyze(gctx, rel, source)
				if err != nil {
					if synerr.IsFatal(err) {
						return err
					}
					mu.Lock()
					skipped++
					mu.Unlock()
					r.logger.Warn("extract_failed",
						slog.String("path", rel),
						slog.String("error", err.Error()))
					continue
				}

				mu.Lock()
				extractions = append(extractions, &extraction{
					analysis: analysis,
					source:   string(source),
				})
				mu.Unlock()
			}
			return nil
		})
	}

	// Join barrier: reference resolution must not start until every
	// worker has drained.
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	sort.Slice(extractions, func(i, j int) bool {
		return extractions[i].analysis.Path < extractions[j].analysis.Path
	})
	return extractions, skipped, nil
}

// aggregate registers one extracted file in the graph and upserts its
// documents. The upsert runs first so an embedding failure never
// leaves the graph referencing a file absent from the index.
func (r *Runner) aggregate(ctx context.Context, ex *extraction) error {
	fa := ex.analysis

	docs := make([]store.Document, 0, 1+len(fa.Symbols))
	docs = append(docs, store.Document{
		ID:   store.FileID(fa.Path),
		Text: ex.source,
		Meta: map[string]string{"path": fa.Path, "type": "file"},
	})
	for _, sym := range fa.Symbols {
		text := sym.Code
		if sym.Doc != "" {
			text = sym.Doc + "\n" + sym.Code
		}
		docs = append(docs, store.Document{
			ID:   store.SymbolID(fa.Path, sym.Name),
			Text: text,
			Meta: map[string]string{
				"path": fa.Path,
				"type": "symbol",
				"name": sym.Name,
			},
		})
	}
	if err := r.store.Upsert(ctx, docs); err != nil {
		return err
	}

	r.graph.AddFile(fa.Path, fa.Language)
	for _, name := range fa.Definitions {
		r.graph.AddDefinition(name, fa.Path)
	}
	for _, name := range fa.Calls {
		r.graph.AddCall(fa.Path, name)
	}
	return nil
}

// removeFileState drops a file's graph node, its definition index
// entries and its embedding documents.
func (r *Runner) removeFileState(rel string) {
	if r.graph.HasNode(rel) {
		_ = r.graph.RemoveNode(rel)
	}
	r.graph.PruneDefinitions(rel)
	r.store.DeleteByPath(rel)
}

// persist writes graph, embedding index and fingerprint snapshot, then
// the summary last so its absence flags an interrupted pass.
func (r *Runner) persist(res *Result, incremental bool) error {
	graphPath := filepath.Join(r.synapseDir, GraphFile)
	if err := r.graph.Save(graphPath); err != nil {
		return err
	}
	if err := r.store.Save(filepath.Join(r.synapseDir, VectorFile)); err != nil {
		return err
	}
	if err := r.tracker.Save(); err != nil {
		return err
	}

	summary := &Summary{
		Status:           "complete",
		DocumentsIndexed: r.store.Count(),
		GraphNodes:       r.graph.NodeCount(),
		GraphEdges:       r.graph.EdgeCount(),
		GraphPath:        graphPath,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if incremental {
		n := res.Changes.TotalChanged()
		summary.ChangedFiles = &n
	} else {
		n := res.FilesAnalyzed
		summary.FilesAnalyzed = &n
	}
	return r.writeSummary(summary)
}

func (r *Runner) writeSummary(s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return synerr.PersistenceFailure("index summary", err)
	}

	path := filepath.Join(r.synapseDir, SummaryFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return synerr.PersistenceFailure("index summary", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return synerr.PersistenceFailure("index summary", err)
	}
	return nil
}

func (r *Runner) rel(abs string) string {
	rel, err := filepath.Rel(r.scanner.Root(), abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
