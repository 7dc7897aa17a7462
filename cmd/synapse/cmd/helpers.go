package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/YuanArchive/synapse-ai-context/internal/config"
	"github.com/YuanArchive/synapse-ai-context/internal/graph"
	"github.com/YuanArchive/synapse-ai-context/internal/index"
	"github.com/YuanArchive/synapse-ai-context/internal/scanner"
	"github.com/YuanArchive/synapse-ai-context/internal/store"
	"github.com/YuanArchive/synapse-ai-context/internal/tracker"
)

// timeRound is the display precision for durations.
const timeRound = time.Millisecond

// components bundles the wired collaborators a command needs.
type components struct {
	root       string
	synapseDir string
	cfg        *config.Config
	scanner    *scanner.Scanner
	tracker    *tracker.Tracker
	graph      *graph.Graph
	store      *store.DocumentStore
}

// openComponents loads config and constructs the pipeline. With
// loadState, the persisted graph and embedding index are read from
// the state directory so the command starts from the last pass.
func openComponents(loadState bool) (*components, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sc, err := scanner.New(root, scanner.Options{
		ExcludeDirs: cfg.Paths.ExcludeDirs,
		Extensions:  cfg.Paths.Extensions,
		MaxFileSize: cfg.MaxFileSize(),
	}, nil)
	if err != nil {
		return nil, err
	}

	synapseDir := index.Dir(root)
	g := graph.New()
	ds := store.NewDocumentStore(store.NewStaticEmbedder())

	if loadState {
		if err := g.Load(filepath.Join(synapseDir, index.GraphFile)); err != nil {
			ds.Close()
			return nil, err
		}
		if err := ds.Load(filepath.Join(synapseDir, index.VectorFile)); err != nil {
			ds.Close()
			return nil, err
		}
	}

	return &components{
		root:       root,
		synapseDir: synapseDir,
		cfg:        cfg,
		scanner:    sc,
		tracker:    tracker.New(synapseDir),
		graph:      g,
		store:      ds,
	}, nil
}

func (c *components) Close() {
	_ = c.store.Close()
}

// requireIndex fails with a hint when no pass has completed yet.
func requireIndex(synapseDir string) error {
	if _, err := os.Stat(filepath.Join(synapseDir, index.GraphFile)); os.IsNotExist(err) {
		return fmt.Errorf("no index found, run 'synapse index' first")
	}
	return nil
}

func newRunner(c *components) (*index.Runner, error) {
	return index.NewRunner(index.Dependencies{
		Config:  c.cfg,
		Scanner: c.scanner,
		Tracker: c.tracker,
		Graph:   c.graph,
		Store:   c.store,
	})
}
