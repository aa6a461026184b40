package rag

import (
	"context"

	"compliance-rag/internal/audit"
	"compliance-rag/internal/index"
	"compliance-rag/internal/llm"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks compliance-rag/internal/rag Retriever,Generator,AuditLog,ModelVerifier

// Retriever finds the chunks most relevant to a question.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]index.Match, error)
	Stats(ctx context.Context) (index.Stats, error)
}

// Generator produces an answer from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error)
	ModelName() string
}

// AuditLog records every query attempt.
type AuditLog interface {
	LogQuery(ctx context.Context, rec audit.Record) (string, error)
}

// ModelVerifier checks that the generation backend serves a model.
type ModelVerifier interface {
	Verify(ctx context.Context, model string) error
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	File    string `json:"file"`
	ChunkID string `json:"chunk_id"`
	Preview string `json:"preview"`
}

// Response is the outcome of one query. Failures are reported in Answer.
type Response struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Model      string   `json:"model"`
	NumSources int      `json:"num_sources"`
}
