package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// JSONStore keeps records in one JSON object keyed by id. Every mutation
// rewrites the whole file through a temp file and rename, so readers never
// see a partial write. The mutex serializes writers within one process only.
type JSONStore[T Record[T]] struct {
	path string
	mu   sync.Mutex
}

// NewJSONDocumentStore opens the document registry file at path.
func NewJSONDocumentStore(path string) (*JSONStore[DocumentRecord], error) {
	return newJSONStore[DocumentRecord](path)
}

// NewJSONUserStore opens the user registry file at path.
func NewJSONUserStore(path string) (*JSONStore[UserRecord], error) {
	return newJSONStore[UserRecord](path)
}

func newJSONStore[T Record[T]](path string) (*JSONStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &JSONStore[T]{path: path}, nil
}

// Path returns the backing file.
func (s *JSONStore[T]) Path() string {
	return s.path
}

func (s *JSONStore[T]) load() (map[string]T, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]T), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	records := make(map[string]T)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *JSONStore[T]) save(records map[string]T) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Get returns the record with id or ErrNotFound.
func (s *JSONStore[T]) Get(_ context.Context, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// List returns all records ordered by id.
func (s *JSONStore[T]) List(_ context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedValues(records), nil
}

// Put inserts or replaces rec.
func (s *JSONStore[T]) Put(ctx context.Context, rec *T) error {
	return s.PutAll(ctx, []T{*rec})
}

// PutAll inserts or replaces recs with a single file rewrite.
func (s *JSONStore[T]) PutAll(_ context.Context, recs []T) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		records[rec.Key()] = rec.Clone()
	}
	return s.save(records)
}

func sortedValues[T Record[T]](records map[string]T) []T {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, records[k])
	}
	return out
}
