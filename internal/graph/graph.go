// Package graph maintains the dependency graph of an indexed codebase.
//
// The graph holds two node kinds: file nodes (id = path) and symbol
// nodes (id = "symbol:"+name, deduplicated globally by name). Files are
// connected to the symbols they define and, after reference
// resolution, to the files whose symbols they call. A side definition
// index maps symbol names to defining files so calls can be resolved
// once all definitions for a pass are known.
package graph

import (
	"container/list"
	"sync"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// NodeKind distinguishes file and symbol nodes.
type NodeKind uint8

const (
	KindFile NodeKind = iota
	KindSymbol
)

func (k NodeKind) String() string {
	if k == KindSymbol {
		return "symbol"
	}
	return "file"
}

// EdgeKind distinguishes defines and calls edges.
type EdgeKind uint8

const (
	EdgeDefines EdgeKind = iota
	EdgeCalls
)

func (k EdgeKind) String() string {
	if k == EdgeCalls {
		return "calls"
	}
	return "defines"
}

// SymbolPrefix prefixes symbol node identifiers.
const SymbolPrefix = "symbol:"

// node is one arena entry. File nodes carry a language and the
// pending call names gathered during extraction; symbol nodes carry
// only their name.
type node struct {
	id    string
	kind  NodeKind
	alive bool

	language     string   // file nodes
	name         string   // symbol nodes
	pendingCalls []string // file nodes, consumed by ResolveReferences

	out []halfEdge // edges where this node is the source
	in  []halfEdge // edges where this node is the target
}

// halfEdge is one direction of an edge, stored on both endpoints.
// peer is the arena index of the other endpoint.
type halfEdge struct {
	peer   int
	kind   EdgeKind
	symbol string // calls edges: the matched symbol name
}

// Graph is the in-memory dependency graph. Nodes live in an arena
// indexed by a string-id map; removed slots stay dead until the next
// full rebuild.
//
// The indexing orchestrator has exclusive write access during a pass.
// The mutex allows concurrent read-only queries between passes.
type Graph struct {
	mu    sync.RWMutex
	arena []*node
	byID  map[string]int

	// definitionIndex maps a symbol name to the files defining it.
	definitionIndex map[string][]string
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		byID:            make(map[string]int),
		definitionIndex: make(map[string][]string),
	}
}

// ensureNode returns the arena index for id, creating the node if
// needed.
func (g *Graph) ensureNode(id string, kind NodeKind) int {
	if idx, ok := g.byID[id]; ok {
		return idx
	}
	idx := len(g.arena)
	g.arena = append(g.arena, &node{id: id, kind: kind, alive: true})
	g.byID[id] = idx
	return idx
}

// AddFile registers a file node. Re-adding an existing file updates
// its language and keeps edges intact.
func (g *Graph) AddFile(path, language string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.ensureNode(path, KindFile)
	g.arena[idx].language = language
}

// AddDefinition registers that file declares the named symbol. The
// symbol node is created or reused, a defines edge is added, and the
// definition index is updated. Idempotent for an existing (name, file)
// pair.
func (g *Graph) AddDefinition(name, file string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fileIdx := g.ensureNode(file, KindFile)
	symIdx := g.ensureNode(SymbolPrefix+name, KindSymbol)
	g.arena[symIdx].name = name

	g.addEdge(fileIdx, symIdx, EdgeDefines, "")

	for _, f := range g.definitionIndex[name] {
		if f == file {
			return
		}
	}
	g.definitionIndex[name] = append(g.definitionIndex[name], file)
}

// AddCall buffers a call by name on the caller's file node. Calls are
// resolved against the definition index later, once every file in the
// pass has registered its definitions.
func (g *Graph) AddCall(callerFile, callName string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.ensureNode(callerFile, KindFile)
	n := g.arena[idx]
	for _, c := range n.pendingCalls {
		if c == callName {
			return
		}
	}
	n.pendingCalls = append(n.pendingCalls, callName)
}

// addEdge inserts an edge, collapsing duplicates of the same kind
// between the same endpoints. For calls edges the latest symbol name
// wins.
func (g *Graph) addEdge(from, to int, kind EdgeKind, symbol string) {
	src := g.arena[from]
	for i := range src.out {
		if src.out[i].peer == to && src.out[i].kind == kind {
			src.out[i].symbol = symbol
			dst := g.arena[to]
			for j := range dst.in {
				if dst.in[j].peer == from && dst.in[j].kind == kind {
					dst.in[j].symbol = symbol
					break
				}
			}
			return
		}
	}
	src.out = append(src.out, halfEdge{peer: to, kind: kind, symbol: symbol})
	g.arena[to].in = append(g.arena[to].in, halfEdge{peer: from, kind: kind, symbol: symbol})
}

// ResolveReferences converts every file's pending call names into
// calls edges to the files defining those names. Self-references are
// skipped. Must run after all definitions for the pass are registered;
// repeated invocations leave the edge set unchanged.
func (g *Graph) ResolveReferences() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for idx, n := range g.arena {
		if !n.alive || n.kind != KindFile {
			continue
		}
		for _, callName := range n.pendingCalls {
			for _, target := range g.definitionIndex[callName] {
				if target == n.id {
					continue
				}
				targetIdx, ok := g.byID[target]
				if !ok || !g.arena[targetIdx].alive {
					continue
				}
				g.addEdge(idx, targetIdx, EdgeCalls, callName)
			}
		}
	}
}

// RelatedFiles returns file paths reachable from path within depth
// hops, treating edges as undirected and traversing through symbol
// nodes without reporting them. Results are ordered by ascending hop
// distance with ties in discovery order; the start node is excluded.
// An unknown path or depth 0 yields an empty list.
func (g *Graph) RelatedFiles(path string, depth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.byID[path]
	if !ok || !g.arena[start].alive {
		return nil
	}

	type visit struct {
		idx  int
		hops int
	}

	visited := map[int]struct{}{start: {}}
	queue := list.New()
	queue.PushBack(visit{start, 0})

	var result []string
	for queue.Len() > 0 {
		v := queue.Remove(queue.Front()).(visit)
		n := g.arena[v.idx]

		if v.idx != start && n.kind == KindFile {
			result = append(result, n.id)
		}
		if v.hops == depth {
			continue
		}

		for _, e := range n.out {
			if _, seen := visited[e.peer]; !seen && g.arena[e.peer].alive {
				visited[e.peer] = struct{}{}
				queue.PushBack(visit{e.peer, v.hops + 1})
			}
		}
		for _, e := range n.in {
			if _, seen := visited[e.peer]; !seen && g.arena[e.peer].alive {
				visited[e.peer] = struct{}{}
				queue.PushBack(visit{e.peer, v.hops + 1})
			}
		}
	}
	return result
}

// Neighbor is one adjacent file in a directed neighborhood query.
type Neighbor struct {
	Path string
	// Caller is true when the neighbor depends on the queried file
	// (incoming edge), false for a callee.
	Caller bool
}

// FileNeighbors returns the directly adjacent file nodes of path,
// callees first, each tagged with traversal direction. Symbol nodes
// are not reported.
func (g *Graph) FileNeighbors(path string) []Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.byID[path]
	if !ok || !g.arena[idx].alive {
		return nil
	}

	var out []Neighbor
	n := g.arena[idx]
	for _, e := range n.out {
		peer := g.arena[e.peer]
		if peer.alive && peer.kind == KindFile {
			out = append(out, Neighbor{Path: peer.id, Caller: false})
		}
	}
	for _, e := range n.in {
		peer := g.arena[e.peer]
		if peer.alive && peer.kind == KindFile {
			out = append(out, Neighbor{Path: peer.id, Caller: true})
		}
	}
	return out
}

// RemoveNode deletes a file node and every edge touching it. The
// definition index is left untouched; pruning stale entries is the
// caller's responsibility as part of the same update.
func (g *Graph) RemoveNode(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[path]
	if !ok || !g.arena[idx].alive {
		return synerr.NotFound(path)
	}

	n := g.arena[idx]
	for _, e := range n.out {
		g.dropHalfEdge(&g.arena[e.peer].in, idx)
	}
	for _, e := range n.in {
		g.dropHalfEdge(&g.arena[e.peer].out, idx)
	}
	n.out = nil
	n.in = nil
	n.alive = false
	delete(g.byID, path)
	return nil
}

// dropHalfEdge removes all half-edges pointing at peer from edges.
func (g *Graph) dropHalfEdge(edges *[]halfEdge, peer int) {
	kept := (*edges)[:0]
	for _, e := range *edges {
		if e.peer != peer {
			kept = append(kept, e)
		}
	}
	*edges = kept
}

// PruneDefinitions removes path from every definition-index entry,
// dropping entries that become empty. Called by the orchestrator
// alongside RemoveNode when a file is deleted or about to be
// re-extracted.
func (g *Graph) PruneDefinitions(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, files := range g.definitionIndex {
		kept := files[:0]
		for _, f := range files {
			if f != path {
				kept = append(kept, f)
			}
		}
		if len(kept) == 0 {
			delete(g.definitionIndex, name)
		} else {
			g.definitionIndex[name] = kept
		}
	}
}

// HasNode reports whether id is present in the graph.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.byID[id]
	return ok && g.arena[idx].alive
}

// Language returns the recorded language of a file node.
func (g *Graph) Language(path string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.byID[path]
	if !ok || !g.arena[idx].alive || g.arena[idx].kind != KindFile {
		return "", false
	}
	return g.arena[idx].language, true
}

// Definers returns the files defining the named symbol.
func (g *Graph) Definers(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	files := g.definitionIndex[name]
	out := make([]string, len(files))
	copy(out, files)
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, n := range g.arena {
		if n.alive {
			count++
		}
	}
	return count
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, n := range g.arena {
		if n.alive {
			count += len(n.out)
		}
	}
	return count
}

// Files returns all live file paths in insertion order.
func (g *Graph) Files() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for _, n := range g.arena {
		if n.alive && n.kind == KindFile {
			out = append(out, n.id)
		}
	}
	return out
}
