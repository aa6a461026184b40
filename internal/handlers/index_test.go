package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"compliance-rag/internal/indexer"
)

type blockingBuilder struct {
	release chan struct{}
	stats   indexer.CoverageStats
	err     error
	gotPath string
	rebuild bool
}

func (b *blockingBuilder) Build(_ context.Context, corpusPath string, rebuild bool) (indexer.CoverageStats, error) {
	b.gotPath = corpusPath
	b.rebuild = rebuild
	<-b.release
	return b.stats, b.err
}

func TestIndexHandler_Build(t *testing.T) {
	builder := &blockingBuilder{
		release: make(chan struct{}),
		stats:   indexer.CoverageStats{DocsProcessed: 3, ChunksEmbedded: 12},
	}
	handler := NewIndexHandler(builder, "data/corpus")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index?rebuild=true", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	// A second trigger while running conflicts.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("concurrent build status = %d, want 409", w.Code)
	}

	w = httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	if got := decodeBody[BuildStatus](t, w); got.State != BuildRunning || !got.Rebuild {
		t.Errorf("status while running = %+v", got)
	}

	close(builder.release)
	handler.Wait()

	if builder.gotPath != "data/corpus" || !builder.rebuild {
		t.Errorf("Build called with (%q, %v)", builder.gotPath, builder.rebuild)
	}

	w = httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	got := decodeBody[BuildStatus](t, w)
	if got.State != BuildSucceeded {
		t.Fatalf("state = %q, want %q", got.State, BuildSucceeded)
	}
	if got.Stats == nil || got.Stats.ChunksEmbedded != 12 {
		t.Errorf("stats = %+v, want 12 chunks embedded", got.Stats)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("build times should be recorded")
	}
}

func TestIndexHandler_BuildFailure(t *testing.T) {
	builder := &blockingBuilder{release: make(chan struct{}), err: errors.New("corpus not found")}
	close(builder.release)
	handler := NewIndexHandler(builder, "missing")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	handler.Wait()

	w = httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	got := decodeBody[BuildStatus](t, w)
	if got.State != BuildFailed || got.Error != "corpus not found" {
		t.Errorf("status = %+v, want failed with error", got)
	}

	// A failed build does not block the next one.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("retry status = %d, want 202", w.Code)
	}
	handler.Wait()
}

func TestIndexHandler_IdleStatus(t *testing.T) {
	handler := NewIndexHandler(&blockingBuilder{}, "corpus")
	handler.Wait()

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	if got := decodeBody[BuildStatus](t, w); got.State != BuildIdle {
		t.Errorf("state = %q, want idle", got.State)
	}
}
