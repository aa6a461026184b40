package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/index"
)

// IndexStatter reports the state of the vector index.
type IndexStatter interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// ModelChecker confirms the generation backend serves a model.
type ModelChecker interface {
	Verify(ctx context.Context, model string) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	index              IndexStatter
	models             ModelChecker
	model              string
	healthCheckTimeout time.Duration
	now                func() time.Time
}

// NewHealthHandler creates a new HealthHandler. models may be nil to skip
// the generation backend check.
func NewHealthHandler(ix IndexStatter, models ModelChecker, model string) *HealthHandler {
	return &HealthHandler{
		index:              ix,
		models:             models,
		model:              model,
		healthCheckTimeout: 5 * time.Second,
		now:                time.Now,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Chunks currently indexed
	TotalChunks int `json:"total_chunks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// An unreachable index is unhealthy. An empty index or an unavailable
// generation model is degraded. Both answer 503.
//
// responses:
//
//	'200':
//	  description: System is healthy
//	'503':
//	  description: System is degraded or unhealthy
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	unhealthy := false

	total, ok := h.checkIndex(checkCtx, logger)
	switch {
	case !ok:
		checks["vector_index"] = "error"
		issues = append(issues, "vector_index_unavailable")
		unhealthy = true
	case total == 0:
		checks["vector_index"] = "empty"
		issues = append(issues, "vector_index_empty")
	default:
		checks["vector_index"] = "ok"
	}

	if h.models != nil {
		if err := h.models.Verify(checkCtx, h.model); err != nil {
			logger.WarnContext(ctx, "generation model check failed", "model", h.model, "error", err)
			checks["llm"] = "error"
			issues = append(issues, "llm_model_unavailable")
		} else {
			checks["llm"] = "ok"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "degraded"
		if unhealthy {
			status = "unhealthy"
		}
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:      status,
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Checks:      checks,
		TotalChunks: total,
		Issues:      issues,
	})
}

// checkIndex returns the chunk count and whether the index answered.
func (h *HealthHandler) checkIndex(ctx context.Context, logger *slog.Logger) (int, bool) {
	stats, err := h.index.Stats(ctx)
	if err != nil {
		logger.WarnContext(ctx, "vector index health check failed", "error", err)
		return 0, false
	}
	if stats.TotalChunks == 0 {
		logger.WarnContext(ctx, "vector index is empty", "collection", stats.CollectionName)
	}
	return stats.TotalChunks, true
}
