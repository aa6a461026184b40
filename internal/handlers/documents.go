package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/registry"
	"compliance-rag/internal/storage"
	"compliance-rag/internal/validation"
)

// DocumentRegistry is the registry surface served over HTTP.
type DocumentRegistry interface {
	Register(ctx context.Context, reg registry.Registration) (bool, error)
	MarkVerified(ctx context.Context, id string) error
	UpdateVersion(ctx context.Context, id, version string) error
	Archive(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*storage.DocumentRecord, error)
	List(ctx context.Context) ([]storage.DocumentRecord, error)
	StaleDocuments(ctx context.Context, days int) ([]registry.StaleDocument, error)
	UsageReport(ctx context.Context) (registry.UsageReport, error)
	SyncWithAuditLog(ctx context.Context, logs registry.LogSource) (int, error)
}

// DocumentsHandler manages the document registry.
type DocumentsHandler struct {
	registry DocumentRegistry
	logs     registry.LogSource
	validate *validation.Validator
}

// NewDocumentsHandler creates a new DocumentsHandler. logs feeds reference
// count syncs.
func NewDocumentsHandler(reg DocumentRegistry, logs registry.LogSource) *DocumentsHandler {
	return &DocumentsHandler{registry: reg, logs: logs, validate: validation.New()}
}

// MutationResponse reports whether a write changed anything.
type MutationResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created,omitempty"`
	Updated int    `json:"updated,omitempty"`
}

// VersionRequest sets a new document version.
type VersionRequest struct {
	Version string `json:"version" validate:"required,max=32"`
}

// List answers GET /api/v1/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.registry.List(ctx)
	if err != nil {
		writeAppError(ctx, w, err, "failed to list documents")
		return
	}
	writeJSON(ctx, w, http.StatusOK, nonNil(docs))
}

// Get answers GET /api/v1/documents/{id}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.registry.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(ctx, w, err, "failed to get document")
		return
	}
	writeJSON(ctx, w, http.StatusOK, doc)
}

// Register answers POST /api/v1/documents. A known id answers 200 with
// created=false and leaves the entry untouched.
func (h *DocumentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reg registry.Registration
	if err := decodeJSON(r, &reg); err != nil {
		writeAppError(ctx, w, err, "invalid registration")
		return
	}
	reg.DocumentID = strings.TrimSpace(reg.DocumentID)
	if err := h.validate.Struct(reg); err != nil {
		writeAppError(ctx, w, err, "invalid registration")
		return
	}

	created, err := h.registry.Register(ctx, reg)
	if err != nil {
		writeAppError(ctx, w, err, "failed to register document")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(ctx, w, status, MutationResponse{ID: reg.DocumentID, Created: created})
}

// Verify answers POST /api/v1/documents/{id}/verify.
func (h *DocumentsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "failed to verify document", h.registry.MarkVerified)
}

// Archive answers POST /api/v1/documents/{id}/archive.
func (h *DocumentsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "failed to archive document", h.registry.Archive)
}

// Version answers PUT /api/v1/documents/{id}/version.
func (h *DocumentsHandler) Version(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(ctx, w, err, "invalid version update")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeAppError(ctx, w, err, "invalid version update")
		return
	}
	h.mutate(w, r, "failed to update document version", func(ctx context.Context, id string) error {
		return h.registry.UpdateVersion(ctx, id, req.Version)
	})
}

func (h *DocumentsHandler) mutate(w http.ResponseWriter, r *http.Request, msg string, fn func(context.Context, string) error) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := fn(ctx, id); err != nil {
		writeAppError(ctx, w, err, msg)
		return
	}
	writeJSON(ctx, w, http.StatusOK, MutationResponse{ID: id})
}

// Stale answers GET /api/v1/documents/stale?days=N.
func (h *DocumentsHandler) Stale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := intQuery(r, "days", registry.DefaultStaleDays)
	if err != nil {
		writeAppError(ctx, w, err, "invalid stale document request")
		return
	}
	stale, err := h.registry.StaleDocuments(ctx, days)
	if err != nil {
		writeAppError(ctx, w, err, "failed to list stale documents")
		return
	}
	writeJSON(ctx, w, http.StatusOK, nonNil(stale))
}

// Report answers GET /api/v1/documents/report.
func (h *DocumentsHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.registry.UsageReport(ctx)
	if err != nil {
		writeAppError(ctx, w, err, "failed to build document usage report")
		return
	}
	writeJSON(ctx, w, http.StatusOK, report)
}

// Sync answers POST /api/v1/documents/sync, recounting references from the
// audit log.
func (h *DocumentsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.logs == nil {
		writeAppError(ctx, w, &apperr.ConfigurationError{Component: "audit log", Err: apperr.ErrNotFound}, "sync unavailable")
		return
	}
	updated, err := h.registry.SyncWithAuditLog(ctx, h.logs)
	if err != nil {
		writeAppError(ctx, w, err, "failed to sync reference counts")
		return
	}
	writeJSON(ctx, w, http.StatusOK, MutationResponse{ID: "documents", Updated: updated})
}
