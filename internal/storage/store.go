package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks compliance-rag/internal/storage DocumentStore
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_user_store.go -package=mocks compliance-rag/internal/storage UserStore

import (
	"context"
	"fmt"

	"compliance-rag/internal/apperr"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// DocumentStore persists document registry entries.
type DocumentStore interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*DocumentRecord, error)
	// List returns all records ordered by id.
	List(ctx context.Context) ([]DocumentRecord, error)
	// Put inserts or replaces one record.
	Put(ctx context.Context, rec *DocumentRecord) error
	// PutAll inserts or replaces records in one atomic write.
	PutAll(ctx context.Context, recs []DocumentRecord) error
}

// UserStore persists user profiles.
type UserStore interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*UserRecord, error)
	// List returns all records ordered by id.
	List(ctx context.Context) ([]UserRecord, error)
	// Put inserts or replaces one record.
	Put(ctx context.Context, rec *UserRecord) error
	// PutAll inserts or replaces records in one atomic write.
	PutAll(ctx context.Context, recs []UserRecord) error
}

// Record is a value with a string primary key that can be deep-copied.
type Record[T any] interface {
	Key() string
	Clone() T
}
