// Package integration tests the full flow from indexing to retrieval
// to verify the components work together.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuanArchive/synapse-ai-context/internal/config"
	"github.com/YuanArchive/synapse-ai-context/internal/graph"
	"github.com/YuanArchive/synapse-ai-context/internal/index"
	"github.com/YuanArchive/synapse-ai-context/internal/scanner"
	"github.com/YuanArchive/synapse-ai-context/internal/search"
	"github.com/YuanArchive/synapse-ai-context/internal/store"
	"github.com/YuanArchive/synapse-ai-context/internal/tracker"
)

type pipeline struct {
	root    string
	cfg     *config.Config
	graph   *graph.Graph
	store   *store.DocumentStore
	tracker *tracker.Tracker
	runner  *index.Runner
}

func newPipeline(t *testing.T, root string) *pipeline {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Index.Workers = 2

	sc, err := scanner.New(root, scanner.Options{
		ExcludeDirs: cfg.Paths.ExcludeDirs,
		Extensions:  cfg.Paths.Extensions,
		MaxFileSize: cfg.MaxFileSize(),
	}, nil)
	require.NoError(t, err)

	g := graph.New()
	ds := store.NewDocumentStore(store.NewStaticEmbedder())
	t.Cleanup(func() { ds.Close() })
	tr := tracker.New(index.Dir(root))

	runner, err := index.NewRunner(index.Dependencies{
		Config:  cfg,
		Scanner: sc,
		Tracker: tr,
		Graph:   g,
		Store:   ds,
	})
	require.NoError(t, err)

	return &pipeline{root: root, cfg: cfg, graph: g, store: ds, tracker: tr, runner: runner}
}

func (p *pipeline) searcher(t *testing.T) *search.Searcher {
	t.Helper()
	s, err := search.New(search.Dependencies{
		Store:  p.store,
		Graph:  p.graph,
		Root:   p.root,
		Config: p.cfg,
	})
	require.NoError(t, err)
	return s
}

func write(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndexThenSearch(t *testing.T) {
	root := t.TempDir()
	write(t, root, "auth.py", `def hash_password(password):
    """Hash a password with a salt."""
    return salted(password)

def login(user, password):
    return verify(user, hash_password(password))
`)
	write(t, root, "render.py", `def render_page(template, context):
    """Render an HTML template."""
    return template.format(**context)
`)

	p := newPipeline(t, root)
	res, err := p.runner.Full(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.FilesAnalyzed)

	results, err := p.searcher(t).Search(context.Background(), "hash password salt", 3, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.py", results[0].Path)
}

func TestSearchSurfacesGraphNeighbors(t *testing.T) {
	root := t.TempDir()
	write(t, root, "handlers.py", `def handle_upload(request):
    data = parse_multipart(request)
    return store_blob(data)
`)
	write(t, root, "storage.py", `def store_blob(data):
    return disk_write(data)
`)

	p := newPipeline(t, root)
	_, err := p.runner.Full(context.Background())
	require.NoError(t, err)

	// Remove storage.py's documents so it can only appear through
	// graph expansion from the handler seed.
	p.store.DeleteByPath("storage.py")

	results, err := p.searcher(t).Search(context.Background(), "handle upload request", 5, 1)
	require.NoError(t, err)

	var viaGraph bool
	for _, r := range results {
		if r.Path == "storage.py" {
			viaGraph = true
			assert.Equal(t, search.RelationCallee, r.Relation)
		}
	}
	assert.True(t, viaGraph, "expected storage.py via graph expansion")
}

func TestIncrementalKeepsSearchFresh(t *testing.T) {
	root := t.TempDir()
	write(t, root, "api.py", `def get_user(user_id):
    return db_fetch(user_id)
`)

	p := newPipeline(t, root)
	_, err := p.runner.Full(context.Background())
	require.NoError(t, err)

	write(t, root, "billing.py", `def charge_card(card_number, amount):
    """Charge a credit card."""
    return gateway_charge(card_number, amount)
`)
	res, err := p.runner.Incremental(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Changes.Added, 1)

	results, err := p.searcher(t).Search(context.Background(), "charge credit card", 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "billing.py", results[0].Path)
}

func TestPersistedStateRoundTrip(t *testing.T) {
	root := t.TempDir()
	write(t, root, "auth.py", `def login(user):
    return check(user)
`)
	write(t, root, "checks.py", `def check(user):
    return True
`)

	p := newPipeline(t, root)
	_, err := p.runner.Full(context.Background())
	require.NoError(t, err)

	// A second pipeline loads everything from disk, as the CLI does.
	synapseDir := index.Dir(root)
	g2 := graph.New()
	require.NoError(t, g2.Load(filepath.Join(synapseDir, index.GraphFile)))
	ds2 := store.NewDocumentStore(store.NewStaticEmbedder())
	defer ds2.Close()
	require.NoError(t, ds2.Load(filepath.Join(synapseDir, index.VectorFile)))

	assert.Equal(t, p.graph.NodeCount(), g2.NodeCount())
	assert.Equal(t, p.graph.EdgeCount(), g2.EdgeCount())
	assert.Equal(t, []string{"checks.py"}, g2.RelatedFiles("auth.py", 1))

	s2, err := search.New(search.Dependencies{
		Store:  ds2,
		Graph:  g2,
		Root:   root,
		Config: p.cfg,
	})
	require.NoError(t, err)

	results, err := s2.Search(context.Background(), "login user", 3, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestMixedLanguageProject(t *testing.T) {
	root := t.TempDir()
	write(t, root, "server.go", `package main

// StartServer boots the HTTP listener.
func StartServer(addr string) error {
	return listenAndServe(addr)
}
`)
	write(t, root, "client.ts", `export function fetchUsers(page: number) {
  return api.get("/users", { page });
}
`)
	write(t, root, "tasks.py", `def run_task(name):
    return schedule(name)
`)

	p := newPipeline(t, root)
	res, err := p.runner.Full(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.FilesAnalyzed)

	lang, ok := p.graph.Language("server.go")
	require.True(t, ok)
	assert.Equal(t, "go", lang)
	assert.True(t, p.store.Contains(store.SymbolID("server.go", "StartServer")))
	assert.True(t, p.store.Contains(store.SymbolID("tasks.py", "run_task")))
}
