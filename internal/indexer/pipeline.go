// Package indexer builds the vector index from an on-disk corpus and
// registers every source document for governance.
package indexer

import (
	"context"
	"fmt"

	"compliance-rag/internal/chunker"
	"compliance-rag/internal/contextutil"
)

// ChunkIndex is the part of the vector index a build writes to.
type ChunkIndex interface {
	Init(ctx context.Context) error
	Rebuild(ctx context.Context) error
	Add(ctx context.Context, chunks []chunker.Chunk) error
}

// CorpusRegistry records the documents a build indexed.
type CorpusRegistry interface {
	ImportCorpus(ctx context.Context, docs []chunker.Document) (int, error)
}

// Pipeline loads, chunks, indexes and registers a corpus.
type Pipeline struct {
	loader         *Loader
	chunker        *chunker.Chunker
	index          ChunkIndex
	registry       CorpusRegistry
	embeddingModel string
}

// NewPipeline creates an indexing pipeline. embeddingModel only feeds the
// reported index version.
func NewPipeline(loader *Loader, c *chunker.Chunker, index ChunkIndex, registry CorpusRegistry, embeddingModel string) *Pipeline {
	return &Pipeline{
		loader:         loader,
		chunker:        c,
		index:          index,
		registry:       registry,
		embeddingModel: embeddingModel,
	}
}

// Build indexes the corpus at corpusPath.
//
// Without rebuild the collection is created when missing and chunks are
// added to it; chunk ids already present fail the build with
// apperr.ErrConflict. With rebuild the collection is cleared first.
// Documents are registered only after every chunk was written.
func (p *Pipeline) Build(ctx context.Context, corpusPath string, rebuild bool) (CoverageStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := p.loader.Load(ctx, corpusPath)
	if err != nil {
		return CoverageStats{}, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(docs) == 0 {
		logger.WarnContext(ctx, "corpus is empty", "path", corpusPath)
	}

	chunks := p.chunker.ProcessAll(docs)
	stats := coverage(docs, chunks, p.embeddingModel, p.chunker.Size())
	logger.InfoContext(ctx, "corpus chunked",
		"documents", stats.DocsProcessed,
		"chunks", stats.ChunksEmbedded,
		"empty_documents", stats.DocsWith0Chunks,
	)

	if rebuild {
		if err := p.index.Rebuild(ctx); err != nil {
			return stats, err
		}
	} else if err := p.index.Init(ctx); err != nil {
		return stats, err
	}

	if err := p.index.Add(ctx, chunks); err != nil {
		return stats, fmt.Errorf("failed to index chunks: %w", err)
	}

	registered, err := p.registry.ImportCorpus(ctx, docs)
	if err != nil {
		return stats, fmt.Errorf("failed to register documents: %w", err)
	}
	stats.DocumentsRegistered = registered

	logger.InfoContext(ctx, "index build completed",
		"chunks", stats.ChunksEmbedded,
		"registered", registered,
		"index_version", stats.IndexVersion,
	)
	return stats, nil
}
