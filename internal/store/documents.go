package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// Document is one indexable unit: a whole file or a single symbol.
// IDs are stable across passes: "file:<path>" for files and
// "symbol:<path>:<name>" for symbols. Metadata carries at least the
// source path so documents can be deleted by file.
type Document struct {
	ID   string
	Text string
	Meta map[string]string
}

// QueryResult is one nearest-neighbor match.
type QueryResult struct {
	ID       string
	Text     string
	Meta     map[string]string
	Distance float32
}

// docRecord is the stored payload for one document.
type docRecord struct {
	Text string
	Meta map[string]string
}

// DocumentStore is the embedding index. Vectors live in a coder/hnsw
// graph keyed by uint64; a side mapping connects string document IDs
// to graph keys. Deletion is lazy: the graph node stays behind but is
// orphaned from the mappings and filtered out of query results.
// Orphans are compacted away on Save.
type DocumentStore struct {
	embedder Embedder

	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	docs    map[string]docRecord
	closed  bool
}

// storeMetadata is the gob side-file accompanying the graph export.
type storeMetadata struct {
	IDMap      map[string]uint64
	NextKey    uint64
	Docs       map[string]docRecord
	Dimensions int
}

// NewDocumentStore creates an empty store over the given embedder.
func NewDocumentStore(embedder Embedder) *DocumentStore {
	return &DocumentStore{
		embedder: embedder,
		graph:    newSearchGraph(),
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		docs:     make(map[string]docRecord),
	}
}

func newSearchGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return graph
}

// Upsert embeds and stores documents. Existing IDs are replaced.
func (s *DocumentStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for i, d := range docs {
		// Lazy deletion: orphan the previous graph node rather than
		// removing it, which coder/hnsw handles badly for the last
		// node.
		if existingKey, exists := s.idMap[d.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, d.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVector(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[d.ID] = key
		s.keyMap[key] = d.ID
		s.docs[d.ID] = docRecord{Text: d.Text, Meta: d.Meta}
	}
	return nil
}

// DeleteByIDs removes documents by ID. Unknown IDs are ignored.
func (s *DocumentStore) DeleteByIDs(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.docs, id)
		}
	}
}

// DeleteByFilter removes every document whose (id, meta) pair the
// predicate accepts and returns the number removed.
func (s *DocumentStore) DeleteByFilter(pred func(id string, meta map[string]string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.docs {
		if !pred(id, rec.Meta) {
			continue
		}
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		delete(s.docs, id)
		removed++
	}
	return removed
}

// DeleteByPath removes all documents whose metadata path matches.
func (s *DocumentStore) DeleteByPath(path string) int {
	return s.DeleteByFilter(func(_ string, meta map[string]string) bool {
		return meta["path"] == path
	})
}

// Query embeds text and returns up to k nearest documents with their
// raw distances. Orphaned graph nodes are filtered out, so fewer than
// k results may come back.
func (s *DocumentStore) Query(ctx context.Context, text string, k int) ([]QueryResult, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if s.graph.Len() == 0 || k <= 0 {
		return []QueryResult{}, nil
	}

	normalizeVector(vec)
	nodes := s.graph.Search(vec, k)

	results := make([]QueryResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		rec := s.docs[id]
		results = append(results, QueryResult{
			ID:       id,
			Text:     rec.Text,
			Meta:     rec.Meta,
			Distance: s.graph.Distance(vec, node.Value),
		})
	}
	return results, nil
}

// Contains reports whether a document ID is stored.
func (s *DocumentStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[id]
	return ok
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Save persists the graph and document metadata atomically. The graph
// goes to path and the metadata to path+".meta". Orphaned graph nodes
// accumulated by lazy deletion are compacted away first so modify-heavy
// watch sessions do not degrade query recall.
func (s *DocumentStore) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if s.graph.Len() > len(s.idMap) {
		if err := s.compactLocked(context.Background()); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

// compactLocked rebuilds the graph from live documents only. The
// embeddings are recomputed, which reproduces the stored vectors
// exactly because the embedder is deterministic. Caller must hold the
// write lock.
func (s *DocumentStore) compactLocked(ctx context.Context) error {
	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = s.docs[id].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	graph := newSearchGraph()
	idMap := make(map[string]uint64, len(ids))
	keyMap := make(map[uint64]string, len(ids))
	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVector(vec)

		key := uint64(i)
		graph.Add(hnsw.MakeNode(key, vec))
		idMap[id] = key
		keyMap[key] = id
	}

	s.graph = graph
	s.idMap = idMap
	s.keyMap = keyMap
	s.nextKey = uint64(len(ids))
	return nil
}

func (s *DocumentStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := storeMetadata{
		IDMap:      s.idMap,
		NextKey:    s.nextKey,
		Docs:       s.docs,
		Dimensions: s.embedder.Dimensions(),
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a previously saved store. Missing files leave the
// store empty without error so a first run starts fresh.
func (s *DocumentStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta storeMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Dimensions != s.embedder.Dimensions() {
		return fmt.Errorf("dimension mismatch: index has %d, embedder produces %d",
			meta.Dimensions, s.embedder.Dimensions())
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.docs = meta.Docs
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources. The embedder is closed as well.
func (s *DocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return s.embedder.Close()
}
