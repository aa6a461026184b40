package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/chunker"
	"compliance-rag/internal/vectorstore"
	"compliance-rag/internal/vectorstore/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// keywordEmbedder embeds text as keyword counts, so similar texts are near.
type keywordEmbedder struct {
	keywords []string
	calls    int
	batches  []int
	err      error
}

func (e *keywordEmbedder) Dimensions() int { return len(e.keywords) }

func (e *keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batches = append(e.batches, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.keywords))
		lower := strings.ToLower(text)
		for j, kw := range e.keywords {
			vec[j] = float32(strings.Count(lower, kw)) + 0.01
		}
		out[i] = vec
	}
	return out, nil
}

func newEmbedder() *keywordEmbedder {
	return &keywordEmbedder{keywords: []string{"needle", "hand", "fire", "privacy"}}
}

func testChunk(id, content string) chunker.Chunk {
	return chunker.Chunk{
		ID:      id,
		Content: content,
		Metadata: chunker.Metadata{
			ChunkID:     id,
			SourceFile:  strings.SplitN(id, "_chunk_", 2)[0],
			ChunkIndex:  0,
			TotalChunks: 1,
		},
	}
}

func newTestIndex(t *testing.T, embedder Embedder, opts Options) *Index {
	t.Helper()
	ix := New(vectorstore.NewMemoryStore(), embedder, opts)
	if err := ix.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return ix
}

func TestIndex_AddAndQuery(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, newEmbedder(), Options{Backend: "memory"})

	chunks := []chunker.Chunk{
		testChunk("osha.pdf_chunk_0", "Report needlestick injuries; needle disposal in sharps containers."),
		testChunk("who.pdf_chunk_0", "Hand hygiene: wash hands before and after patient contact."),
		testChunk("nfpa.pdf_chunk_0", "Fire evacuation routes must stay clear. Fire drills quarterly."),
		testChunk("hipaa.pdf_chunk_0", "The privacy rule protects health information."),
	}
	if err := ix.Add(ctx, chunks); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	matches, err := ix.Query(ctx, "what do I do after a needle stick?", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Query() returned %d matches, want 2", len(matches))
	}
	top := matches[0]
	if top.ChunkID != "osha.pdf_chunk_0" {
		t.Errorf("top match = %s, want osha.pdf_chunk_0", top.ChunkID)
	}
	if top.Content != chunks[0].Content {
		t.Errorf("top content = %q", top.Content)
	}
	if top.Metadata.SourceFile != "osha.pdf" || top.Metadata.TotalChunks != 1 {
		t.Errorf("top metadata = %+v", top.Metadata)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Errorf("matches not in ascending distance: %v > %v", matches[0].Distance, matches[1].Distance)
	}

	stats, err := ix.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{TotalChunks: 4, CollectionName: DefaultCollection, Backend: "memory", Exists: true}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestIndex_QueryDeterministic(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, newEmbedder(), Options{})
	_ = ix.Add(ctx, []chunker.Chunk{
		testChunk("a.pdf_chunk_0", "hand washing"),
		testChunk("b.pdf_chunk_0", "hand rub"),
		testChunk("c.pdf_chunk_0", "fire"),
	})

	first, _ := ix.Query(ctx, "hand", 3)
	second, _ := ix.Query(ctx, "hand", 3)
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID {
			t.Errorf("result %d differs between identical queries", i)
		}
	}
}

func TestIndex_AddBatching(t *testing.T) {
	ctx := context.Background()
	embedder := newEmbedder()
	ix := newTestIndex(t, embedder, Options{EmbedBatchSize: 3, AddBatchSize: 5})

	var chunks []chunker.Chunk
	for i := range 12 {
		chunks = append(chunks, testChunk(fmt.Sprintf("doc.pdf_chunk_%d", i), "hand"))
	}
	if err := ix.Add(ctx, chunks); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Store batches of 5, 5, 2, each embedded in groups of at most 3.
	want := []int{3, 2, 3, 2, 2}
	if fmt.Sprint(embedder.batches) != fmt.Sprint(want) {
		t.Errorf("embed batches = %v, want %v", embedder.batches, want)
	}
	if stats, _ := ix.Stats(ctx); stats.TotalChunks != 12 {
		t.Errorf("TotalChunks = %d, want 12", stats.TotalChunks)
	}
}

func TestIndex_AddConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate id in batch", func(t *testing.T) {
		embedder := newEmbedder()
		ix := newTestIndex(t, embedder, Options{})
		err := ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x"), testChunk("a.pdf_chunk_0", "y")})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("Add() error = %v, want ErrConflict", err)
		}
		if embedder.calls != 0 {
			t.Error("embedder called for a conflicting batch")
		}
	})

	t.Run("id already indexed", func(t *testing.T) {
		ix := newTestIndex(t, newEmbedder(), Options{})
		if err := ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x")}); err != nil {
			t.Fatalf("first Add() error = %v", err)
		}
		err := ix.Add(ctx, []chunker.Chunk{testChunk("b.pdf_chunk_0", "y"), testChunk("a.pdf_chunk_0", "x")})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("Add() error = %v, want ErrConflict", err)
		}
		if stats, _ := ix.Stats(ctx); stats.TotalChunks != 1 {
			t.Errorf("TotalChunks = %d, want 1 (nothing written)", stats.TotalChunks)
		}
	})

	t.Run("rebuild allows re-adding", func(t *testing.T) {
		ix := newTestIndex(t, newEmbedder(), Options{})
		_ = ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x")})
		if err := ix.Rebuild(ctx); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
		if err := ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x")}); err != nil {
			t.Errorf("Add() after Rebuild error = %v", err)
		}
	})
}

func TestIndex_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	embedder := newEmbedder()
	ix := newTestIndex(t, embedder, Options{})
	embedder.err = errors.New("connection refused")

	_, err := ix.Query(ctx, "hand", 5)
	var failure *apperr.RetrievalFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Query() error = %v, want RetrievalFailure", err)
	}
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Error("RetrievalFailure should match ErrExternalService")
	}

	if err := ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x")}); !errors.As(err, &failure) {
		t.Errorf("Add() error = %v, want RetrievalFailure", err)
	}
}

func TestIndex_QueryInvalidK(t *testing.T) {
	ix := newTestIndex(t, newEmbedder(), Options{})
	if _, err := ix.Query(context.Background(), "hand", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Query(k=0) error = %v, want ErrInvalidInput", err)
	}
}

func TestIndex_QueryCancelledWhileThrottled(t *testing.T) {
	ix := newTestIndex(t, newEmbedder(), Options{RequestsPerSecond: 0.001})
	ctx := context.Background()
	// First call consumes the single burst token.
	_, _ = ix.Query(ctx, "hand", 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := ix.Query(cancelled, "hand", 1)
	var failure *apperr.RetrievalFailure
	if !errors.As(err, &failure) {
		t.Errorf("Query() error = %v, want RetrievalFailure", err)
	}
}

func TestIndex_WithMockStore(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)
	ix := New(store, newEmbedder(), Options{Collection: "test"})

	t.Run("search failure", func(t *testing.T) {
		store.EXPECT().Search(gomock.Any(), "test", gomock.Any(), 5).Return(nil, errors.New("unavailable"))
		_, err := ix.Query(ctx, "hand", 5)
		var failure *apperr.RetrievalFailure
		if !errors.As(err, &failure) {
			t.Errorf("Query() error = %v, want RetrievalFailure", err)
		}
	})

	t.Run("payload without chunk id", func(t *testing.T) {
		store.EXPECT().Search(gomock.Any(), "test", gomock.Any(), 1).Return([]vectorstore.SearchResult{
			{PointID: "x.pdf_chunk_2", Distance: 0.25, Meta: map[string]any{"content": "body", "source_file": "x.pdf"}},
		}, nil)
		matches, err := ix.Query(ctx, "hand", 1)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if matches[0].Metadata.ChunkID != "x.pdf_chunk_2" || matches[0].Content != "body" {
			t.Errorf("match = %+v", matches[0])
		}
	})

	t.Run("stats on missing collection", func(t *testing.T) {
		store.EXPECT().CollectionExists(gomock.Any(), "test").Return(false, nil)
		stats, err := ix.Stats(ctx)
		if err != nil || stats.TotalChunks != 0 || stats.Exists {
			t.Errorf("Stats() = %+v, %v", stats, err)
		}
	})

	t.Run("upsert failure", func(t *testing.T) {
		store.EXPECT().Existing(gomock.Any(), "test", []string{"a.pdf_chunk_0"}).Return(nil, nil)
		store.EXPECT().Upsert(gomock.Any(), "test", gomock.Len(1)).Return(errors.New("disk full"))
		if err := ix.Add(ctx, []chunker.Chunk{testChunk("a.pdf_chunk_0", "x")}); err == nil {
			t.Error("Add() error = nil, want error")
		}
	})
}
