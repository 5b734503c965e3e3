package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// collection is one scope's HNSW graph plus the string<->uint64 key
// mapping and payload table needed to answer filtered queries. Deletes
// are lazy: a removed key is dropped from the mappings but the node
// stays in the graph, since coder/hnsw cannot safely delete its last
// remaining node.
type collection struct {
	graph      *hnsw.Graph[uint64]
	dimensions int

	idToKey  map[string]uint64
	keyToID  map[uint64]string
	payloads map[string]VectorPayload
	nextKey  uint64
}

func newCollection() *collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &collection{
		graph:    graph,
		idToKey:  make(map[string]uint64),
		keyToID:  make(map[uint64]string),
		payloads: make(map[string]VectorPayload),
	}
}

// collectionFile stores the fields collection needs to reopen across
// process restarts; the graph topology itself is exported separately via
// graph.Export into the sibling ".hnsw" file.
type collectionFile struct {
	Dimensions int
	IDToKey    map[string]uint64
	NextKey    uint64
	Payloads   map[string]VectorPayload
}

// HNSWStore implements VectorStore with one collection per scope.
type HNSWStore struct {
	mu          sync.RWMutex
	collections map[Scope]*collection
	closed      bool
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates an empty vector store. Collections are created
// lazily via EnsureCollection.
func NewHNSWStore() *HNSWStore {
	return &HNSWStore{collections: make(map[Scope]*collection)}
}

// EnsureCollection is idempotent; it creates scope's collection if
// absent.
func (s *HNSWStore) EnsureCollection(scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	if _, ok := s.collections[scope]; !ok {
		s.collections[scope] = newCollection()
	}
	return nil
}

func (s *HNSWStore) collectionFor(scope Scope) (*collection, error) {
	c, ok := s.collections[scope]
	if !ok {
		c = newCollection()
		s.collections[scope] = c
	}
	return c, nil
}

// Add atomically inserts a batch of vectors with their payloads. The
// scope's dimension is established by the first vector ever added to it;
// subsequent adds of a different width fail with ErrDimensionMismatch so
// a backend swap can't silently corrupt the graph.
func (s *HNSWStore) Add(ctx context.Context, scope Scope, chunkIDs []string, vectors [][]float32, payloads []VectorPayload) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if len(chunkIDs) != len(vectors) || len(chunkIDs) != len(payloads) {
		return fmt.Errorf("chunkIDs, vectors, and payloads length mismatch: %d/%d/%d", len(chunkIDs), len(vectors), len(payloads))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	c, err := s.collectionFor(scope)
	if err != nil {
		return err
	}

	if c.dimensions == 0 && len(vectors) > 0 {
		c.dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != c.dimensions {
			return ErrDimensionMismatch{Scope: scope, Expected: c.dimensions, Got: len(v)}
		}
	}

	for i, id := range chunkIDs {
		if existingKey, exists := c.idToKey[id]; exists {
			delete(c.keyToID, existingKey)
			delete(c.idToKey, id)
			delete(c.payloads, id)
		}

		key := c.nextKey
		c.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idToKey[id] = key
		c.keyToID[key] = id
		c.payloads[id] = payloads[i]
	}

	return nil
}

// Query returns the topK nearest neighbors to queryVector in scope, in
// non-increasing score order.
func (s *HNSWStore) Query(ctx context.Context, scope Scope, queryVector []float32, topK int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}

	c, ok := s.collections[scope]
	if !ok || c.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	if len(queryVector) != c.dimensions {
		return nil, ErrDimensionMismatch{Scope: scope, Expected: c.dimensions, Got: len(queryVector)}
	}

	query := make([]float32, len(queryVector))
	copy(query, queryVector)
	normalizeVectorInPlace(query)

	nodes := c.graph.Search(query, topK)

	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := c.keyToID[node.Key]
		if !exists {
			continue // lazily deleted
		}

		payload := c.payloads[id]
		distance := c.graph.Distance(query, node.Value)
		score := 1.0 - distance/2.0

		results = append(results, VectorResult{
			ChunkID:    id,
			Score:      score,
			DocID:      payload.DocID,
			Filename:   payload.Filename,
			FileType:   payload.FileType,
			ChunkIndex: payload.ChunkIndex,
			Scope:      scope,
		})
	}

	return results, nil
}

// DeleteByDocID removes every vector in scope whose payload's DocID
// matches docID.
func (s *HNSWStore) DeleteByDocID(ctx context.Context, scope Scope, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	c, ok := s.collections[scope]
	if !ok {
		return nil
	}

	for id, payload := range c.payloads {
		if payload.DocID != docID {
			continue
		}
		if key, exists := c.idToKey[id]; exists {
			delete(c.keyToID, key)
			delete(c.idToKey, id)
		}
		delete(c.payloads, id)
	}

	return nil
}

// Contains reports whether chunkID has a vector in scope's collection.
func (s *HNSWStore) Contains(scope Scope, chunkID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[scope]
	if !ok {
		return false
	}
	_, exists := c.idToKey[chunkID]
	return exists
}

// ChunkIDs returns every chunk id stored in scope's collection.
func (s *HNSWStore) ChunkIDs(scope Scope) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[scope]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(c.idToKey))
	for id := range c.idToKey {
		ids = append(ids, id)
	}
	return ids
}

// ClearAll drops every collection.
func (s *HNSWStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[Scope]*collection)
	return nil
}

// Save persists every collection's graph and mapping to dir, one pair of
// files (<scope>.hnsw, <scope>.hnsw.meta) per scope.
func (s *HNSWStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create vector store directory: %w", err)
	}

	for scope, c := range s.collections {
		if err := saveCollection(dir, scope, c); err != nil {
			return fmt.Errorf("failed to save collection %s: %w", scope, err)
		}
	}
	return nil
}

func saveCollection(dir string, scope Scope, c *collection) error {
	graphPath := filepath.Join(dir, string(scope)+".hnsw")
	tmpPath := graphPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp graph file: %w", err)
	}
	if err := c.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, graphPath); err != nil {
		return err
	}

	metaPath := graphPath + ".meta"
	metaTmp := metaPath + ".tmp"
	metaFile, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("create temp meta file: %w", err)
	}

	meta := collectionFile{
		Dimensions: c.dimensions,
		IDToKey:    c.idToKey,
		NextKey:    c.nextKey,
		Payloads:   c.payloads,
	}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(metaTmp)
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(metaTmp)
		return err
	}
	return os.Rename(metaTmp, metaPath)
}

// Load restores every collection found in dir. Scopes with no on-disk
// file are left absent, created lazily on first EnsureCollection/Add.
func (s *HNSWStore) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scope := range []Scope{ScopePolicyManual, ScopeWorkspaceDocs} {
		graphPath := filepath.Join(dir, string(scope)+".hnsw")
		if _, err := os.Stat(graphPath); os.IsNotExist(err) {
			continue
		}

		c, err := loadCollection(graphPath)
		if err != nil {
			return fmt.Errorf("failed to load collection %s: %w", scope, err)
		}
		s.collections[scope] = c
	}
	return nil
}

func loadCollection(graphPath string) (*collection, error) {
	metaFile, err := os.Open(graphPath + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open meta file: %w", err)
	}
	defer metaFile.Close()

	var meta collectionFile
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}

	c := newCollection()
	c.dimensions = meta.Dimensions
	c.idToKey = meta.IDToKey
	c.nextKey = meta.NextKey
	c.payloads = meta.Payloads
	for id, key := range c.idToKey {
		c.keyToID[key] = id
	}

	file, err := os.Open(graphPath)
	if err != nil {
		return nil, fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := c.graph.Import(reader); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	return c, nil
}

// Close releases resources held by every collection.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.collections = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
