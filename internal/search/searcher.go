// Package search implements hybrid retrieval: vector similarity seeds
// from the embedding index, expanded through the dependency graph and
// re-ranked by a weighted blend of both signals.
package search

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuanArchive/synapse-ai-context/internal/config"
	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
	"github.com/YuanArchive/synapse-ai-context/internal/graph"
	"github.com/YuanArchive/synapse-ai-context/internal/store"
)

// contentCacheSize bounds the file-content cache used when expanded
// results are read from disk.
const contentCacheSize = 128

// Relation labels how a result entered the result set.
const (
	RelationDirect = "direct"
	RelationCallee = "callee"
	RelationCaller = "caller"
)

// Result is one ranked retrieval hit.
type Result struct {
	// ID is the document identifier ("file:..." or "symbol:...").
	ID string

	// Path is the file the hit belongs to.
	Path string

	// Text is the document or file content.
	Text string

	// Meta carries the document metadata for seed hits.
	Meta map[string]string

	// Score is the final blended ranking score.
	Score float64

	// VectorScore is the similarity component (seeds only).
	VectorScore float64

	// GraphScore is the proximity component.
	GraphScore float64

	// Depth is the hop distance from the nearest seed.
	Depth int

	// Relation is direct, callee or caller.
	Relation string
}

// Dependencies are the injected collaborators for a Searcher.
type Dependencies struct {
	// Store is the embedding index queried for seeds (required).
	Store *store.DocumentStore

	// Graph is the dependency graph used for expansion (required).
	Graph *graph.Graph

	// Root is the project root, used to read expanded file content
	// (required).
	Root string

	// Config supplies the ranking weights and expansion bounds
	// (required).
	Config *config.Config

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Searcher runs the three-stage retrieval pipeline. It is read-only
// over its graph and store; callers serialize searches against index
// passes.
type Searcher struct {
	store  *store.DocumentStore
	graph  *graph.Graph
	root   string
	logger *slog.Logger

	alpha       float64
	beta        float64
	depth       int
	maxExpanded int
	topK        int

	content *lru.Cache[string, string]
}

// New creates a Searcher. Alpha and beta are normalized to sum to 1.
func New(deps Dependencies) (*Searcher, error) {
	if deps.Store == nil {
		return nil, synerr.New(synerr.ErrCodeInternal, "document store is required", nil)
	}
	if deps.Graph == nil {
		return nil, synerr.New(synerr.ErrCodeInternal, "graph is required", nil)
	}
	if deps.Root == "" {
		return nil, synerr.New(synerr.ErrCodeInternal, "project root is required", nil)
	}
	if deps.Config == nil {
		return nil, synerr.New(synerr.ErrCodeInternal, "config is required", nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := deps.Config.Search
	alpha, beta := normalizeWeights(sc.Alpha, sc.Beta)

	content, _ := lru.New[string, string](contentCacheSize)

	return &Searcher{
		store:       deps.Store,
		graph:       deps.Graph,
		root:        deps.Root,
		logger:      logger,
		alpha:       alpha,
		beta:        beta,
		depth:       sc.ExpansionDepth,
		maxExpanded: sc.MaxExpanded,
		topK:        sc.MaxResults,
		content:     content,
	}, nil
}

func normalizeWeights(alpha, beta float64) (float64, float64) {
	sum := alpha + beta
	if sum == 0 {
		return 0.5, 0.5
	}
	return alpha / sum, beta / sum
}

// Search runs the pipeline for one query. topK and expansionDepth
// fall back to the configured defaults when non-positive, except
// expansionDepth zero, which disables expansion.
func (s *Searcher) Search(ctx context.Context, query string, topK, expansionDepth int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, synerr.New(synerr.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if topK <= 0 {
		topK = s.topK
	}
	if expansionDepth < 0 {
		expansionDepth = s.depth
	}

	seeds, err := s.seedDiscovery(ctx, query, topK)
	if err != nil {
		// A backend failure surfaces as an empty result set, never as
		// a crashed retriever.
		s.logger.Warn("search_backend_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return []Result{}, nil
	}
	if len(seeds) == 0 {
		return []Result{}, nil
	}

	expanded := s.expand(seeds, expansionDepth)

	merged := append(seeds, expanded...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	seen := make(map[string]struct{}, len(merged))
	out := make([]Result, 0, topK)
	for _, r := range merged {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}

	s.logger.Debug("search_complete",
		slog.String("query", query),
		slog.Int("seeds", len(seeds)),
		slog.Int("expanded", len(expanded)),
		slog.Int("results", len(out)))
	return out, nil
}

// seedDiscovery queries the embedding index for 2*topK nearest
// documents and scores them by similarity.
func (s *Searcher) seedDiscovery(ctx context.Context, query string, topK int) ([]Result, error) {
	hits, err := s.store.Query(ctx, query, 2*topK)
	if err != nil {
		return nil, synerr.BackendFailure(err)
	}

	seeds := make([]Result, 0, len(hits))
	for _, h := range hits {
		vectorScore := 1.0 / (1.0 + float64(h.Distance))
		seeds = append(seeds, Result{
			ID:          h.ID,
			Path:        h.Meta["path"],
			Text:        h.Text,
			Meta:        h.Meta,
			Score:       s.alpha*vectorScore + s.beta*1.0,
			VectorScore: vectorScore,
			GraphScore:  1.0,
			Depth:       0,
			Relation:    RelationDirect,
		})
	}
	return seeds, nil
}

// expand breadth-first traverses the graph from every seed's file,
// over both callee and caller edges, up to depth hops. Visited paths
// are shared across seeds and the total expansion is capped.
func (s *Searcher) expand(seeds []Result, depth int) []Result {
	if depth <= 0 {
		return nil
	}

	type frontier struct {
		path     string
		hops     int
		relation string
	}

	visited := make(map[string]struct{}, len(seeds))
	var queue []frontier
	for _, seed := range seeds {
		if seed.Path == "" {
			continue
		}
		if _, seen := visited[seed.Path]; seen {
			continue
		}
		visited[seed.Path] = struct{}{}
		// A seed absent from the graph contributes no frontier; its
		// vector score still ranks it.
		if s.graph.HasNode(seed.Path) {
			queue = append(queue, frontier{path: seed.Path, hops: 0})
		}
	}

	var out []Result
	for len(queue) > 0 && len(out) < s.maxExpanded {
		f := queue[0]
		queue = queue[1:]

		if f.hops > 0 {
			if r, ok := s.expandedResult(f.path, f.hops, f.relation); ok {
				out = append(out, r)
				if len(out) == s.maxExpanded {
					break
				}
			}
		}
		if f.hops == depth {
			continue
		}

		for _, nb := range s.graph.FileNeighbors(f.path) {
			if _, seen := visited[nb.Path]; seen {
				continue
			}
			visited[nb.Path] = struct{}{}
			relation := RelationCallee
			if nb.Caller {
				relation = RelationCaller
			}
			queue = append(queue, frontier{path: nb.Path, hops: f.hops + 1, relation: relation})
		}
	}
	return out
}

// expandedResult builds the result for one expanded file. Files whose
// content can no longer be read are dropped.
func (s *Searcher) expandedResult(path string, hops int, relation string) (Result, bool) {
	text, err := s.fileContent(path)
	if err != nil {
		s.logger.Debug("expansion_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return Result{}, false
	}

	gs := graphScore(hops, relation == RelationCaller)
	return Result{
		ID:         store.FileID(path),
		Path:       path,
		Text:       text,
		Score:      s.beta * gs,
		GraphScore: gs,
		Depth:      hops,
		Relation:   relation,
	}, true
}

// graphScore maps hop distance to a base proximity score, with a flat
// bonus for callers capped at 1.0.
func graphScore(hops int, caller bool) float64 {
	var score float64
	switch hops {
	case 0:
		score = 1.0
	case 1:
		score = 0.7
	case 2:
		score = 0.5
	default:
		score = 0.3
	}
	if caller {
		score += 0.1
		if score > 1.0 {
			score = 1.0
		}
	}
	return score
}

func (s *Searcher) fileContent(path string) (string, error) {
	if text, ok := s.content.Get(path); ok {
		return text, nil
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	text := string(data)
	s.content.Add(path, text)
	return text, nil
}
