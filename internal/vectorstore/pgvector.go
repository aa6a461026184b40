package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"compliance-rag/internal/contextutil"
)

// PgVectorStore implements VectorStore on PostgreSQL with the pgvector
// extension. Each collection is a table of (id, embedding, meta).
type PgVectorStore struct {
	pool *pgxpool.Pool
}

// NewPgVectorStore connects to Postgres and verifies the connection.
func NewPgVectorStore(ctx context.Context, dsn string) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PgVectorStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PgVectorStore) Close() {
	s.pool.Close()
}

func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func upsertSQL(collection string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, embedding, meta)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			meta = EXCLUDED.meta`, tableName(collection))
}

// Ties on distance break by id so results are deterministic.
func searchSQL(collection string) string {
	return fmt.Sprintf(`SELECT id, embedding <=> $1 AS distance, meta
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2`, tableName(collection))
}

func existingSQL(collection string) string {
	return fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, tableName(collection))
}

func countSQL(collection string) string {
	return fmt.Sprintf(`SELECT count(*) FROM %s`, tableName(collection))
}

func dropSQL(collection string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableName(collection))
}

func createTableSQL(collection string, vectorSize int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		meta JSONB NOT NULL DEFAULT '{}'::jsonb
	)`, tableName(collection), vectorSize)
}

// Upsert inserts or updates points in one batch.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	query := upsertSQL(collection)

	batch := &pgx.Batch{}
	for _, p := range points {
		meta, err := json.Marshal(p.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", p.ID, err)
		}
		batch.Queue(query, p.ID, pgvector.NewVector(p.Vec), meta)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search orders by the cosine distance operator.
func (s *PgVectorStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	rows, err := s.pool.Query(ctx, searchSQL(collection), pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id       string
			distance float64
			raw      []byte
		)
		if err := rows.Scan(&id, &distance, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		meta := make(map[string]any)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
			}
		}
		results = append(results, SearchResult{PointID: id, Distance: float32(distance), Meta: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}
	return results, nil
}

// Existing returns the ids among ids that are stored.
func (s *PgVectorStore) Existing(ctx context.Context, collection string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, existingSQL(collection), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing ids: %w", err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect existing ids: %w", err)
	}
	return existing, nil
}

// Count returns the number of rows in the collection table.
func (s *PgVectorStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, countSQL(collection)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

// CollectionExists reports whether the collection table exists.
func (s *PgVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var name *string
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, tableName(collection)).Scan(&name); err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return name != nil, nil
}

// EnsureCollection creates the collection table when missing and checks
// the embedding dimension otherwise.
func (s *PgVectorStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return s.createCollection(ctx, collection, vectorSize)
	}

	var dims int
	err = s.pool.QueryRow(ctx, `SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`, tableName(collection)).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("collection %s has no embedding column", collection)
	}
	if err != nil {
		return fmt.Errorf("failed to read collection vector size: %w", err)
	}
	if dims != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, dims)
	}
	return nil
}

// Recreate drops the collection table and creates it empty.
func (s *PgVectorStore) Recreate(ctx context.Context, collection string, vectorSize int) error {
	if _, err := s.pool.Exec(ctx, dropSQL(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return s.createCollection(ctx, collection, vectorSize)
}

func (s *PgVectorStore) createCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createTableSQL(collection, vectorSize)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}
