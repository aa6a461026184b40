package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/indexer"
)

// IndexBuilder runs an index build over a corpus.
type IndexBuilder interface {
	Build(ctx context.Context, corpusPath string, rebuild bool) (indexer.CoverageStats, error)
}

// IndexHandler handles HTTP requests for triggering index builds. At most
// one build runs at a time.
type IndexHandler struct {
	builder    IndexBuilder
	corpusPath string
	now        func() time.Time

	mu     sync.Mutex
	status BuildStatus
	done   chan struct{}
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(builder IndexBuilder, corpusPath string) *IndexHandler {
	return &IndexHandler{
		builder:    builder,
		corpusPath: corpusPath,
		now:        time.Now,
		status:     BuildStatus{State: BuildIdle},
	}
}

// Build states.
const (
	BuildIdle      = "idle"
	BuildRunning   = "running"
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// BuildStatus describes the latest index build.
//
// swagger:model BuildStatus
type BuildStatus struct {
	State      string                 `json:"state"`
	Rebuild    bool                   `json:"rebuild"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Stats      *indexer.CoverageStats `json:"stats,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP starts a build in the background and answers 202. With
// ?rebuild=true the collection is cleared first. A build already in
// progress answers 409.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	rebuild := r.URL.Query().Get("rebuild") == "true"

	h.mu.Lock()
	if h.status.State == BuildRunning {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, "an index build is already running")
		return
	}
	started := h.now()
	h.status = BuildStatus{State: BuildRunning, Rebuild: rebuild, StartedAt: &started}
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	logger.InfoContext(ctx, "index build triggered via API", "rebuild", rebuild, "corpus", h.corpusPath)

	// The build outlives the request but keeps its logger.
	buildCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		stats, err := h.builder.Build(buildCtx, h.corpusPath, rebuild)

		h.mu.Lock()
		defer h.mu.Unlock()
		finished := h.now()
		h.status.FinishedAt = &finished
		if err != nil {
			logger.ErrorContext(buildCtx, "index build failed", "error", err)
			h.status.State = BuildFailed
			h.status.Error = err.Error()
			return
		}
		h.status.State = BuildSucceeded
		h.status.Stats = &stats
	}()

	message := "Index build started. Check /api/v1/index/status for progress."
	if rebuild {
		message = "Index rebuild started (existing chunks cleared). Check /api/v1/index/status for progress."
	}
	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{Message: message, Status: "accepted"})
}

// Status reports the latest build.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := h.status
	h.mu.Unlock()
	writeJSON(r.Context(), w, http.StatusOK, status)
}

// Wait blocks until the running build, if any, finishes.
func (h *IndexHandler) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}
