// Package index is the vector index over chunk embeddings: batched
// loading, nearest-neighbor queries and collection statistics.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/chunker"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/vectorstore"
)

const (
	// DefaultCollection is the collection chunks are stored in.
	DefaultCollection = "medical_compliance"
	// DefaultEmbedBatchSize is the number of texts per embedding request.
	DefaultEmbedBatchSize = 32
	// DefaultAddBatchSize is the number of points per store write.
	DefaultAddBatchSize = 100

	payloadContent = "content"
)

// Embedder turns text into fixed-size vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Options configures an Index. Zero values select the defaults.
type Options struct {
	Collection     string
	Backend        string
	EmbedBatchSize int
	AddBatchSize   int
	// RequestsPerSecond throttles embedding requests; 0 means unlimited.
	RequestsPerSecond float64
}

// Match is one query hit.
type Match struct {
	ChunkID  string           `json:"chunk_id"`
	Content  string           `json:"content"`
	Metadata chunker.Metadata `json:"metadata"`
	Distance float32          `json:"distance"`
}

// Stats describes the indexed collection.
type Stats struct {
	TotalChunks    int    `json:"total_chunks"`
	CollectionName string `json:"collection_name"`
	Backend        string `json:"backend"`
	// Exists is false until the collection has been created.
	Exists bool `json:"exists"`
}

// Index stores chunk embeddings in a vector store.
type Index struct {
	store      vectorstore.VectorStore
	embedder   Embedder
	collection string
	backend    string
	embedBatch int
	addBatch   int
	limiter    *rate.Limiter
}

// New creates an Index over store.
func New(store vectorstore.VectorStore, embedder Embedder, opts Options) *Index {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if opts.AddBatchSize <= 0 {
		opts.AddBatchSize = DefaultAddBatchSize
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Index{
		store:      store,
		embedder:   embedder,
		collection: opts.Collection,
		backend:    opts.Backend,
		embedBatch: opts.EmbedBatchSize,
		addBatch:   opts.AddBatchSize,
		limiter:    limiter,
	}
}

// Collection returns the collection name.
func (ix *Index) Collection() string {
	return ix.collection
}

// Init creates the collection when missing.
func (ix *Index) Init(ctx context.Context) error {
	if err := ix.store.EnsureCollection(ctx, ix.collection, ix.embedder.Dimensions()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	return nil
}

// Rebuild drops every indexed chunk. Ids may be added again afterwards.
func (ix *Index) Rebuild(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)
	if err := ix.store.Recreate(ctx, ix.collection, ix.embedder.Dimensions()); err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	logger.InfoContext(ctx, "index cleared for rebuild", "collection", ix.collection)
	return nil
}

// Add embeds and stores chunks. A chunk id that is repeated in the batch
// or already indexed fails the whole call with apperr.ErrConflict before
// anything is written.
func (ix *Index) Add(ctx context.Context, chunks []chunker.Chunk) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	var dups []string
	for i, c := range chunks {
		ids[i] = c.ID
		if _, ok := seen[c.ID]; ok {
			dups = append(dups, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w: duplicate chunk ids in batch: %s", apperr.ErrConflict, summarize(dups))
	}

	for start := 0; start < len(ids); start += ix.addBatch {
		end := min(start+ix.addBatch, len(ids))
		existing, err := ix.store.Existing(ctx, ix.collection, ids[start:end])
		if err != nil {
			return fmt.Errorf("failed to check existing chunks: %w", err)
		}
		if len(existing) > 0 {
			sort.Strings(existing)
			return fmt.Errorf("%w: chunks already indexed: %s", apperr.ErrConflict, summarize(existing))
		}
	}

	for start := 0; start < len(chunks); start += ix.addBatch {
		batch := chunks[start:min(start+ix.addBatch, len(chunks))]

		vectors, err := ix.embed(ctx, batch)
		if err != nil {
			return err
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			meta := c.Metadata.Payload()
			meta[payloadContent] = c.Content
			points[i] = vectorstore.Point{ID: c.ID, Vec: vectors[i], Meta: meta}
		}
		if err := ix.store.Upsert(ctx, ix.collection, points); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
		logger.InfoContext(ctx, "indexed chunk batch", "collection", ix.collection, "added", start+len(batch), "total", len(chunks))
	}
	return nil
}

// embed returns one vector per chunk, calling the embedder in sub-batches.
func (ix *Index) embed(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += ix.embedBatch {
		batch := chunks[start:min(start+ix.embedBatch, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vecs, err := ix.embedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vecs...)
	}
	return vectors, nil
}

func (ix *Index) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ix.limiter.Wait(ctx); err != nil {
		return nil, &apperr.RetrievalFailure{Err: fmt.Errorf("embedding throttle: %w", err)}
	}
	vecs, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, &apperr.RetrievalFailure{Err: fmt.Errorf("embedding failed: %w", err)}
	}
	if len(vecs) != len(texts) {
		return nil, &apperr.RetrievalFailure{Err: fmt.Errorf("embedding returned %d vectors for %d texts", len(vecs), len(texts))}
	}
	return vecs, nil
}

// Query returns the k chunks nearest to text, nearest first.
// Embedding or store failures are returned as *apperr.RetrievalFailure.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, &apperr.ValidationError{Field: "k", Message: "must be greater than 0"}
	}

	vecs, err := ix.embedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	results, err := ix.store.Search(ctx, ix.collection, vecs[0], k)
	if err != nil {
		return nil, &apperr.RetrievalFailure{Err: fmt.Errorf("search failed: %w", err)}
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		content, _ := r.Meta[payloadContent].(string)
		meta := chunker.MetadataFromPayload(r.Meta)
		if meta.ChunkID == "" {
			meta.ChunkID = r.PointID
		}
		matches = append(matches, Match{
			ChunkID:  r.PointID,
			Content:  content,
			Metadata: meta,
			Distance: r.Distance,
		})
	}
	return matches, nil
}

// Stats reports whether the collection exists and how many chunks it holds.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	exists, err := ix.store.CollectionExists(ctx, ix.collection)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to check collection: %w", err)
	}
	stats := Stats{CollectionName: ix.collection, Backend: ix.backend}
	if !exists {
		return stats, nil
	}
	stats.Exists = true
	n, err := ix.store.Count(ctx, ix.collection)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	stats.TotalChunks = n
	return stats, nil
}

// summarize lists at most five ids.
func summarize(ids []string) string {
	if len(ids) <= 5 {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:5], ", "), len(ids)-5)
}
