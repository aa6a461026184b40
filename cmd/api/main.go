package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compliance-rag/internal/app"
	"compliance-rag/internal/config"
	"compliance-rag/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers compliance questions from an indexed policy corpus and
// exposes the audit log, document registry and user governance records.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Compliance RAG API
//   description: |
//     Retrieval-augmented question answering over compliance documents.
//     Every answer cites its sources and is recorded in an append-only audit log.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(cfg.NewLogger(os.Stdout))
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close resources", "error", err)
		}
	}()

	if err := a.InitIndex(ctx); err != nil {
		log.Fatalf("Failed to initialize vector index: %v", err)
	}
	slog.Info("Vector index ready", "backend", cfg.VectorBackend, "collection", a.Index.Collection())

	// The query engine is created on first use. The collection exists from
	// here on, so questions asked before POST /api/v1/index cite no sources.
	deps := &http.Deps{
		Queries:      a.QueryService(),
		QueryTimeout: cfg.QueryTimeout,
		Users:        a.Users,
		Documents:    a.Registry,
		AuditLog:     a.AuditLog,
		Reporter:     a.Dashboard,
		Builder:      a.Pipeline,
		CorpusPath:   cfg.CorpusPath,
		Index:        a.Index,
		ModelName:    cfg.LLMModelName,
	}
	if a.Models != nil {
		deps.Models = a.Models
	}

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}
