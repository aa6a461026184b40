package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Returned records are copies.
type MemoryStore[T Record[T]] struct {
	mu      sync.RWMutex
	records map[string]T
}

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryStore[DocumentRecord] {
	return &MemoryStore[DocumentRecord]{records: make(map[string]DocumentRecord)}
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryStore[UserRecord] {
	return &MemoryStore[UserRecord]{records: make(map[string]UserRecord)}
}

// Get returns a copy of the record with id or ErrNotFound.
func (s *MemoryStore[T]) Get(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := rec.Clone()
	return &c, nil
}

// List returns copies of all records ordered by id.
func (s *MemoryStore[T]) List(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.records)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

// Put inserts or replaces rec.
func (s *MemoryStore[T]) Put(ctx context.Context, rec *T) error {
	return s.PutAll(ctx, []T{*rec})
}

// PutAll inserts or replaces recs.
func (s *MemoryStore[T]) PutAll(_ context.Context, recs []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[rec.Key()] = rec.Clone()
	}
	return nil
}
