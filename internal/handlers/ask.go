package handlers

import (
	"context"
	"net/http"
	"time"

	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/rag"
	"compliance-rag/internal/service"
)

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	queries service.QueryService
	timeout time.Duration
}

// NewAskHandler creates a new AskHandler. A positive timeout bounds each
// query; the orchestrator reports an expired query as cancelled.
func NewAskHandler(queries service.QueryService, timeout time.Duration) *AskHandler {
	return &AskHandler{queries: queries, timeout: timeout}
}

// AskRequest represents the HTTP request payload for RAG queries.
// The X-User-ID header takes precedence over user_id.
//
// swagger:model AskRequest
type AskRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Question string `json:"question"`
}

// BatchAskRequest asks several questions in order.
//
// swagger:model BatchAskRequest
type BatchAskRequest struct {
	UserID    string   `json:"user_id,omitempty"`
	Questions []string `json:"questions"`
}

// BatchAskResponse holds one response per answered question.
//
// swagger:model BatchAskResponse
type BatchAskResponse struct {
	Responses []rag.Response `json:"responses"`
}

// ServeHTTP answers one question.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a compliance question
//
// Retrieves the most relevant passages and generates a grounded answer with
// citations. Every attempt is written to the audit log. Retrieval or
// generation failures are reported in the answer text with status 200.
//
// responses:
//
//	'200':
//	  description: Answer with sources
//	'400':
//	  description: Missing user or question
//	'403':
//	  description: User may not query the knowledge base
//	'500':
//	  description: The audit entry could not be written
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	var req AskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(ctx, w, err, "invalid ask request")
		return
	}

	resp, err := h.queries.Ask(ctx, service.QueryRequest{
		UserID:   userOr(r, req.UserID),
		Question: req.Question,
	})
	if err != nil {
		writeAppError(ctx, w, err, "failed to record query in audit log")
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Batch answers several questions sequentially. When the audit log fails
// part way, the request fails and the completed answers are discarded from
// the response; they remain in the audit log.
func (h *AskHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	logger := contextutil.LoggerFromContext(ctx)

	var req BatchAskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(ctx, w, err, "invalid batch request")
		return
	}

	responses, err := h.queries.AskBatch(ctx, service.BatchRequest{
		UserID:    userOr(r, req.UserID),
		Questions: req.Questions,
	})
	if err != nil {
		if len(responses) > 0 {
			logger.WarnContext(ctx, "batch stopped early", "answered", len(responses), "requested", len(req.Questions))
		}
		writeAppError(ctx, w, err, "failed to record query in audit log")
		return
	}
	writeJSON(ctx, w, http.StatusOK, BatchAskResponse{Responses: responses})
}

func (h *AskHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func userOr(r *http.Request, fallback string) string {
	if id := callerID(r); id != "" {
		return id
	}
	return fallback
}
