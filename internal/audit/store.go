package audit

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks compliance-rag/internal/audit Store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists audit entries in append order.
type Store interface {
	// Append durably adds one entry. It must be visible to Entries once it returns.
	Append(ctx context.Context, entry Entry) error
	// Entries returns every entry in append order.
	Entries(ctx context.Context) ([]Entry, error)
}

// FileStore keeps the log as newline-delimited JSON.
// Each entry is written with a single O_APPEND write followed by fsync,
// so concurrent writers never interleave partial lines.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the log file and its directory when missing.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close audit log: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the log file path.
func (s *FileStore) Path() string {
	return s.path
}

// Append writes entry as one line and syncs it to disk.
func (s *FileStore) Append(_ context.Context, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// Entries reads the whole log. Blank lines are skipped; a corrupt line is an error.
func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("corrupt audit log line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds entry.
func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of all entries.
func (s *MemoryStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...), nil
}
