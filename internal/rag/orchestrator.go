// Package rag answers compliance questions from retrieved context and
// records every attempt in the audit log.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/llm"
)

// DefaultNResults is the number of chunks retrieved per question.
const DefaultNResults = 5

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	NResults int
	Params   llm.GenerateParams
	// Verifier, when set, must confirm the generation model at construction.
	Verifier ModelVerifier
}

// Orchestrator runs retrieve, prompt, generate and log for each question.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	auditLog  AuditLog
	nResults  int
	params    llm.GenerateParams
	now       func() time.Time
}

// New creates an Orchestrator. It fails with a ConfigurationError when the
// index is unreadable or its collection was never created, or when the
// verifier rejects the model. An existing empty collection is accepted;
// queries against it retrieve nothing but are still answered and logged.
func New(ctx context.Context, retriever Retriever, generator Generator, auditLog AuditLog, opts Options) (*Orchestrator, error) {
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := retriever.Stats(ctx)
	if err != nil {
		return nil, &apperr.ConfigurationError{Component: "vector index", Err: err}
	}
	if !stats.Exists {
		return nil, &apperr.ConfigurationError{
			Component: "vector index",
			Err:       fmt.Errorf("collection %q does not exist, run ingestion first", stats.CollectionName),
		}
	}
	if stats.TotalChunks == 0 {
		logger.WarnContext(ctx, "vector index is empty", "collection", stats.CollectionName)
	}

	if opts.Verifier != nil {
		if err := opts.Verifier.Verify(ctx, generator.ModelName()); err != nil {
			var cfgErr *apperr.ConfigurationError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			return nil, &apperr.ConfigurationError{Component: "llm", Err: err}
		}
	}

	if opts.NResults <= 0 {
		opts.NResults = DefaultNResults
	}
	if opts.Params == (llm.GenerateParams{}) {
		opts.Params = llm.DefaultGenerateParams()
	}

	logger.InfoContext(ctx, "RAG orchestrator ready",
		"collection", stats.CollectionName,
		"chunks", stats.TotalChunks,
		"model", generator.ModelName(),
		"n_results", opts.NResults,
	)

	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		auditLog:  auditLog,
		nResults:  opts.NResults,
		params:    opts.Params,
		now:       time.Now,
	}, nil
}

// Query answers question for userID. The Response is always filled; failures
// of retrieval or generation become its Answer. Every attempt is appended to
// the audit log, even when ctx is cancelled, and the returned error is
// non-nil only when that append fails.
func (o *Orchestrator) Query(ctx context.Context, userID, question string) (Response, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := o.now()

	resp := Response{
		Question: question,
		Model:    o.generator.ModelName(),
		Sources:  []Source{},
	}
	var sourceFiles []string
	var failure string

	logger.InfoContext(ctx, "RAG query started", "user_id", userID, "question_length", len(question), "k", o.nResults)

	matches, err := o.retriever.Query(ctx, question, o.nResults)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		resp.Answer = fmt.Sprintf("Error processing query: %v", err)
		failure = failureMessage(ctx, err)
	} else {
		resp.Sources = sourcesFrom(matches)
		resp.NumSources = len(matches)
		sourceFiles = make([]string, len(matches))
		for i, m := range matches {
			sourceFiles[i] = m.Metadata.SourceFile
		}

		prompt := BuildPrompt(question, matches)
		logger.DebugContext(ctx, "prompt built", "prompt_length", len(prompt), "sources", len(matches))

		answer, err := o.generator.Generate(ctx, prompt, o.params)
		if err != nil {
			genErr := &apperr.GenerationFailure{Err: err}
			logger.ErrorContext(ctx, "generation failed", "error", genErr)
			resp.Answer = fmt.Sprintf("Error generating response: %v", err)
			failure = failureMessage(ctx, err)
		} else {
			resp.Answer = answer
		}
	}

	elapsed := o.now().Sub(start)
	rec := audit.Record{
		UserID:           userID,
		Query:            question,
		SourcesRetrieved: sourceFiles,
		NumSources:       resp.NumSources,
		AnswerGenerated:  failure == "",
		ResponseTime:     elapsed,
		ModelUsed:        resp.Model,
		Error:            failure,
	}
	queryID, err := o.auditLog.LogQuery(context.WithoutCancel(ctx), rec)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record query", "error", err)
		return resp, fmt.Errorf("failed to record query: %w", err)
	}

	logger.InfoContext(ctx, "RAG query completed",
		"query_id", queryID,
		"answer_generated", rec.AnswerGenerated,
		"num_sources", resp.NumSources,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

// BatchQuery answers questions one after another, each fully logged before
// the next starts. It stops at the first audit failure and returns the
// responses completed so far.
func (o *Orchestrator) BatchQuery(ctx context.Context, userID string, questions []string) ([]Response, error) {
	responses := make([]Response, 0, len(questions))
	for i, q := range questions {
		resp, err := o.Query(ctx, userID, q)
		if err != nil {
			return responses, fmt.Errorf("question %d: %w", i+1, err)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// ModelName returns the generation model.
func (o *Orchestrator) ModelName() string {
	return o.generator.ModelName()
}

// failureMessage is the audit error for err. Cancellation is reported with
// its cause.
func failureMessage(ctx context.Context, err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cause := err
		if ctx.Err() != nil {
			cause = context.Cause(ctx)
		}
		return fmt.Sprintf("query cancelled by user: %v", cause)
	}
	return err.Error()
}
