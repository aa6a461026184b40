package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"compliance-rag/internal/access"
	"compliance-rag/internal/handlers"
	"compliance-rag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Queries      service.QueryService
	QueryTimeout time.Duration

	Users     handlers.UserAdmin
	Documents handlers.DocumentRegistry
	AuditLog  handlers.AuditReader
	Reporter  handlers.Reporter

	// Builder and CorpusPath back POST /api/v1/index.
	Builder    handlers.IndexBuilder
	CorpusPath string

	Index     handlers.IndexStatter
	Models    handlers.ModelChecker // optional
	ModelName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Queries, deps.QueryTimeout)
	healthHandler := handlers.NewHealthHandler(deps.Index, deps.Models, deps.ModelName)
	indexHandler := handlers.NewIndexHandler(deps.Builder, deps.CorpusPath)
	dashboardHandler := handlers.NewDashboardHandler(deps.Reporter)
	auditHandler := handlers.NewAuditHandler(deps.AuditLog)
	documentsHandler := handlers.NewDocumentsHandler(deps.Documents, deps.AuditLog)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.AuditLog)

	require := func(p access.Permission) func(http.Handler) http.Handler {
		return handlers.RequirePermission(deps.Users, p)
	}

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			// Permission checks for queries happen in the query service.
			r.Method(http.MethodPost, "/ask", askHandler)
			r.Post("/ask/batch", askHandler.Batch)

			r.With(require(access.PermModifyKnowledgeBase)).Method(http.MethodPost, "/index", indexHandler)
			r.With(require(access.PermModifyKnowledgeBase)).Get("/index/status", indexHandler.Status)

			r.Route("/dashboard", func(r chi.Router) {
				r.Use(require(access.PermViewOrgAnalytics))
				r.Get("/summary", dashboardHandler.Summary)
				r.Post("/export", dashboardHandler.Export)
			})

			r.Route("/audit", func(r chi.Router) {
				r.Use(require(access.PermViewAuditLogs))
				r.Get("/logs", auditHandler.Logs)
				r.Get("/stats", auditHandler.Statistics)
				r.Get("/search", auditHandler.Search)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(require(access.PermViewOrgAnalytics))
					r.Get("/", documentsHandler.List)
					r.Get("/report", documentsHandler.Report)
					r.Get("/stale", documentsHandler.Stale)
					r.Get("/{id}", documentsHandler.Get)
				})
				r.Group(func(r chi.Router) {
					r.Use(require(access.PermModifyKnowledgeBase))
					r.Post("/", documentsHandler.Register)
					r.Post("/sync", documentsHandler.Sync)
					r.Post("/{id}/verify", documentsHandler.Verify)
					r.Post("/{id}/archive", documentsHandler.Archive)
					r.Put("/{id}/version", documentsHandler.Version)
				})
			})

			r.Route("/users", func(r chi.Router) {
				// Users may read their own profile; the handler checks.
				r.Get("/{id}", usersHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(require(access.PermManageUsers))
					r.Get("/", usersHandler.List)
					r.Post("/", usersHandler.Create)
					r.Get("/report", usersHandler.Report)
					r.Post("/sync", usersHandler.Sync)
					r.Put("/{id}/role", usersHandler.Role)
					r.Post("/{id}/deactivate", usersHandler.Deactivate)
				})
			})
		})
	})

	return r
}
