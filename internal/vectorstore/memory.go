package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine distance.
// It backs tests and single-process deployments without a vector database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	size   int
	points map[string]Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) (*memoryCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	return c, nil
}

// Upsert inserts or updates points in the collection.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vec) != c.size {
			return fmt.Errorf("point %s has size %d, expected %d", p.ID, len(p.Vec), c.size)
		}
	}
	for _, p := range points {
		c.points[p.ID] = Point{
			ID:   p.ID,
			Vec:  append([]float32(nil), p.Vec...),
			Meta: maps.Clone(p.Meta),
		}
	}
	return nil
}

// Search returns the k nearest points by cosine distance. Ties are broken by id.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.size {
		return nil, fmt.Errorf("query has size %d, expected %d", len(query), c.size)
	}

	results := make([]SearchResult, 0, len(c.points))
	for id, p := range c.points {
		results = append(results, SearchResult{
			PointID:  id,
			Distance: cosineDistance(query, p.Vec),
			Meta:     maps.Clone(p.Meta),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].PointID < results[j].PointID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Existing returns the ids among ids that are stored.
func (s *MemoryStore) Existing(_ context.Context, collection string, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	var existing []string
	for _, id := range ids {
		if _, ok := c.points[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

// Count returns the number of points in the collection.
func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(c.points), nil
}

// CollectionExists reports whether the collection exists.
func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// EnsureCollection creates the collection when missing.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.size != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, c.size)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{size: vectorSize, points: make(map[string]Point)}
	return nil
}

// Recreate replaces the collection with an empty one.
func (s *MemoryStore) Recreate(_ context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = &memoryCollection{size: vectorSize, points: make(map[string]Point)}
	return nil
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
