package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// persistedGraph is the on-disk node/edge serialization. Container
// attributes are flattened: a file node's pending call list becomes a
// comma-delimited string and is re-split on load.
type persistedGraph struct {
	Version string          `json:"version"`
	Nodes   []persistedNode `json:"nodes"`
	Edges   []persistedEdge `json:"edges"`
}

type persistedNode struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Name     string `json:"name,omitempty"`
	Calls    string `json:"calls,omitempty"`
}

type persistedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

const graphVersion = "1.0"

// Save writes the graph to path atomically. A failed save leaves the
// in-memory graph and any previous file on disk untouched.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	out := persistedGraph{Version: graphVersion}

	for _, n := range g.arena {
		if !n.alive {
			continue
		}
		pn := persistedNode{ID: n.id, Type: n.kind.String()}
		switch n.kind {
		case KindFile:
			pn.Language = n.language
			pn.Calls = strings.Join(n.pendingCalls, ",")
		case KindSymbol:
			pn.Name = n.name
		}
		out.Nodes = append(out.Nodes, pn)

		for _, e := range n.out {
			peer := g.arena[e.peer]
			if !peer.alive {
				continue
			}
			out.Edges = append(out.Edges, persistedEdge{
				Source: n.id,
				Target: peer.id,
				Type:   e.kind.String(),
				Symbol: e.symbol,
			})
		}
	}
	g.mu.RUnlock()

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return synerr.PersistenceFailure("dependency graph", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return synerr.PersistenceFailure("dependency graph", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return synerr.PersistenceFailure("dependency graph", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return synerr.PersistenceFailure("dependency graph", err)
	}
	return nil
}

// Load replaces the graph content with the serialization at path and
// rebuilds the definition index from defines edges. A missing file
// leaves the graph empty without error.
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return synerr.PersistenceFailure("dependency graph", err)
	}

	var in persistedGraph
	if err := json.Unmarshal(data, &in); err != nil {
		return synerr.PersistenceFailure("dependency graph", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.arena = nil
	g.byID = make(map[string]int)
	g.definitionIndex = make(map[string][]string)

	for _, pn := range in.Nodes {
		switch pn.Type {
		case "symbol":
			idx := g.ensureNode(pn.ID, KindSymbol)
			g.arena[idx].name = pn.Name
		default:
			idx := g.ensureNode(pn.ID, KindFile)
			g.arena[idx].language = pn.Language
			if pn.Calls != "" {
				g.arena[idx].pendingCalls = strings.Split(pn.Calls, ",")
			}
		}
	}

	for _, pe := range in.Edges {
		from, ok := g.byID[pe.Source]
		if !ok {
			continue
		}
		to, ok := g.byID[pe.Target]
		if !ok {
			continue
		}
		kind := EdgeDefines
		if pe.Type == "calls" {
			kind = EdgeCalls
		}
		g.addEdge(from, to, kind, pe.Symbol)

		if kind == EdgeDefines {
			name := g.arena[to].name
			if name == "" {
				name = strings.TrimPrefix(pe.Target, SymbolPrefix)
			}
			g.registerDefinition(name, pe.Source)
		}
	}
	return nil
}

// registerDefinition adds file under name without duplicating.
// Caller holds the write lock.
func (g *Graph) registerDefinition(name, file string) {
	for _, f := range g.definitionIndex[name] {
		if f == file {
			return
		}
	}
	g.definitionIndex[name] = append(g.definitionIndex[name], file)
}
