package handlers

import (
	"context"
	"net/http"
	"time"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/dashboard"
)

const defaultPeriodDays = 30

// Reporter produces executive summaries.
type Reporter interface {
	ExecutiveSummary(ctx context.Context, days int) (dashboard.Summary, error)
	ExportReport(ctx context.Context, days int) (string, error)
}

// AuditReader queries the audit log.
type AuditReader interface {
	GetLogs(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
	GetStatistics(ctx context.Context, days int) (audit.Statistics, error)
	SearchQueries(ctx context.Context, keyword string, limit int) ([]audit.Entry, error)
}

// DashboardHandler serves executive summaries.
type DashboardHandler struct {
	reporter Reporter
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reporter Reporter) *DashboardHandler {
	return &DashboardHandler{reporter: reporter}
}

// SummaryResponse is a summary with its recommendations.
//
// swagger:model SummaryResponse
type SummaryResponse struct {
	Summary         dashboard.Summary `json:"summary"`
	Recommendations []string          `json:"recommendations"`
}

// ExportResponse names the written report.
type ExportResponse struct {
	Path string `json:"path"`
}

// Summary answers GET /api/v1/dashboard/summary?days=N.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := intQuery(r, "days", defaultPeriodDays)
	if err != nil {
		writeAppError(ctx, w, err, "invalid summary request")
		return
	}
	s, err := h.reporter.ExecutiveSummary(ctx, days)
	if err != nil {
		writeAppError(ctx, w, err, "failed to build executive summary")
		return
	}
	writeJSON(ctx, w, http.StatusOK, SummaryResponse{
		Summary:         s,
		Recommendations: dashboard.Recommendations(s),
	})
}

// Export answers POST /api/v1/dashboard/export?days=N.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := intQuery(r, "days", defaultPeriodDays)
	if err != nil {
		writeAppError(ctx, w, err, "invalid export request")
		return
	}
	path, err := h.reporter.ExportReport(ctx, days)
	if err != nil {
		writeAppError(ctx, w, err, "failed to export report")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, ExportResponse{Path: path})
}

// AuditHandler exposes the audit log to auditors.
type AuditHandler struct {
	logs AuditReader
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(logs AuditReader) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// EntriesResponse wraps a list of audit entries.
type EntriesResponse struct {
	Count   int           `json:"count"`
	Entries []audit.Entry `json:"entries"`
}

// Logs answers GET /api/v1/audit/logs with optional user_id, start_date,
// end_date (YYYY-MM-DD) and limit filters.
func (h *AuditHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeAppError(ctx, w, err, "invalid audit log request")
		return
	}
	f := audit.Filter{
		UserID:    q.Get("user_id"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Limit:     limit,
	}
	for field, v := range map[string]string{"start_date": f.StartDate, "end_date": f.EndDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			writeAppError(ctx, w, &apperr.ValidationError{Field: field, Message: "must be YYYY-MM-DD"}, "invalid audit log request")
			return
		}
	}

	entries, err := h.logs.GetLogs(ctx, f)
	if err != nil {
		writeAppError(ctx, w, err, "failed to read audit log")
		return
	}
	writeJSON(ctx, w, http.StatusOK, EntriesResponse{Count: len(entries), Entries: nonNil(entries)})
}

// Statistics answers GET /api/v1/audit/stats?days=N.
func (h *AuditHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := intQuery(r, "days", defaultPeriodDays)
	if err != nil {
		writeAppError(ctx, w, err, "invalid statistics request")
		return
	}
	stats, err := h.logs.GetStatistics(ctx, days)
	if err != nil {
		writeAppError(ctx, w, err, "failed to compute audit statistics")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

// Search answers GET /api/v1/audit/search?q=keyword&limit=N.
func (h *AuditHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		writeAppError(ctx, w, &apperr.ValidationError{Field: "q", Message: "cannot be empty"}, "invalid search request")
		return
	}
	limit, err := intQuery(r, "limit", audit.DefaultSearchLimit)
	if err != nil {
		writeAppError(ctx, w, err, "invalid search request")
		return
	}
	entries, err := h.logs.SearchQueries(ctx, keyword, limit)
	if err != nil {
		writeAppError(ctx, w, err, "failed to search audit log")
		return
	}
	writeJSON(ctx, w, http.StatusOK, EntriesResponse{Count: len(entries), Entries: nonNil(entries)})
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
