package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks compliance-rag/internal/vectorstore VectorStore

import "context"

// Point is a stored vector keyed by chunk id.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult is a nearest-neighbor hit. Distance is a cosine distance,
// smaller is closer.
type SearchResult struct {
	PointID  string
	Distance float32
	Meta     map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k nearest points ordered by ascending distance.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// Existing returns the subset of ids already stored in the collection.
	Existing(ctx context.Context, collection string, ids []string) ([]string, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// EnsureCollection creates the collection when missing and validates its
	// vector size otherwise.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Recreate drops the collection if present and creates it empty.
	Recreate(ctx context.Context, collection string, vectorSize int) error
}
