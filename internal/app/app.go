// Package app wires the components of the compliance assistant from
// configuration. Both the API server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compliance-rag/internal/access"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/chunker"
	"compliance-rag/internal/config"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/dashboard"
	"compliance-rag/internal/index"
	"compliance-rag/internal/indexer"
	"compliance-rag/internal/llm"
	"compliance-rag/internal/rag"
	"compliance-rag/internal/registry"
	"compliance-rag/internal/service"
	"compliance-rag/internal/storage"
	"compliance-rag/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config *config.Config

	Index     *index.Index
	Pipeline  *indexer.Pipeline
	AuditLog  *audit.Log
	Registry  *registry.Registry
	Users     *access.Control
	Dashboard *dashboard.Dashboard
	Generator *llm.Client
	// Models is nil when model verification is disabled.
	Models *llm.ModelCatalog

	engine  *lazyEngine
	closers []func() error
	counter chunker.TokenCounter
}

// Option configures New.
type Option func(*App)

// WithTokenCounter replaces the tiktoken counter used to size chunks.
func WithTokenCounter(c chunker.TokenCounter) Option {
	return func(a *App) {
		a.counter = c
	}
}

// New builds every component. The vector index may still be empty; the
// query engine is created on first use.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	logger := contextutil.LoggerFromContext(ctx)
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	store, err := a.openVectorStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "vector store ready", "backend", cfg.VectorBackend)

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.VectorSize, cfg.QueryTimeout)
	a.Index = index.New(store, embedder, index.Options{
		Collection:        cfg.QdrantCollection,
		Backend:           cfg.VectorBackend,
		RequestsPerSecond: cfg.EmbedRequestsPerSecond,
	})

	auditStore, err := audit.NewFileStore(cfg.AuditLogPath)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	a.AuditLog = audit.NewLog(auditStore)

	docs, users, err := a.openGovernanceStores(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Registry = registry.New(docs)
	a.Users = access.New(users)
	a.Dashboard = dashboard.New(a.AuditLog, a.Registry, a.Users, cfg.DataDir)
	logger.InfoContext(ctx, "governance stores ready", "backend", cfg.GovernanceBackend)

	if a.counter == nil {
		counter, err := chunker.NewTiktokenCounter(chunker.DefaultEncoding)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create chunker: %w", err)
		}
		a.counter = counter
	}
	c := chunker.New(cfg.ChunkSize, a.counter)
	a.Pipeline = indexer.NewPipeline(indexer.NewLoader(), c, a.Index, a.Registry, cfg.EmbeddingModelName)

	a.Generator = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, cfg.QueryTimeout)
	if cfg.LLMVerifyModel {
		a.Models = llm.NewModelCatalog(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.QueryTimeout)
	}

	ragOpts := rag.Options{NResults: cfg.NResults}
	if a.Models != nil {
		ragOpts.Verifier = a.Models
	}
	a.engine = &lazyEngine{build: func(ctx context.Context) (*rag.Orchestrator, error) {
		return rag.New(ctx, a.Index, a.Generator, a.AuditLog, ragOpts)
	}}
	return a, nil
}

func (a *App) openVectorStore(ctx context.Context) (vectorstore.VectorStore, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		s, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendPgVector:
		s, err := vectorstore.NewPgVectorStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		return s, nil
	default:
		return vectorstore.NewMemoryStore(), nil
	}
}

func (a *App) openGovernanceStores(ctx context.Context) (storage.DocumentStore, storage.UserStore, error) {
	cfg := a.Config
	if cfg.GovernanceBackend == config.GovernanceSQLite {
		db, err := storage.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "database initialized", "path", cfg.DBPath)
		return storage.NewDocumentRepo(db), storage.NewUserRepo(db), nil
	}

	docs, err := storage.NewJSONDocumentStore(cfg.DocumentRegistryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document registry: %w", err)
	}
	users, err := storage.NewJSONUserStore(cfg.UsersPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open user store: %w", err)
	}
	return docs, users, nil
}

// InitIndex creates the vector collection when missing.
func (a *App) InitIndex(ctx context.Context) error {
	return a.Index.Init(ctx)
}

// QueryService returns the permission-checked query path.
func (a *App) QueryService() service.QueryService {
	return service.NewQueryService(a.engine, a.Users)
}

// Orchestrator builds the query engine now, failing with a
// ConfigurationError when the collection is missing or the model is absent.
func (a *App) Orchestrator(ctx context.Context) (*rag.Orchestrator, error) {
	return a.engine.get(ctx)
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// lazyEngine creates the orchestrator on first use and retries after a
// failed attempt, so the server can start before the index is built.
type lazyEngine struct {
	build func(ctx context.Context) (*rag.Orchestrator, error)

	mu   sync.Mutex
	orch *rag.Orchestrator
}

func (e *lazyEngine) get(ctx context.Context) (*rag.Orchestrator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.orch != nil {
		return e.orch, nil
	}
	orch, err := e.build(ctx)
	if err != nil {
		return nil, err
	}
	e.orch = orch
	return orch, nil
}

func (e *lazyEngine) Query(ctx context.Context, userID, question string) (rag.Response, error) {
	orch, err := e.get(ctx)
	if err != nil {
		return rag.Response{}, err
	}
	return orch.Query(ctx, userID, question)
}

func (e *lazyEngine) BatchQuery(ctx context.Context, userID string, questions []string) ([]rag.Response, error) {
	orch, err := e.get(ctx)
	if err != nil {
		return nil, err
	}
	return orch.BatchQuery(ctx, userID, questions)
}
