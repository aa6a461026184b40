// Package service holds the use cases exposed to the HTTP and CLI layers.
package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query.go -package=mocks compliance-rag/internal/service QueryEngine,UserDirectory
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query_service.go -package=mocks compliance-rag/internal/service QueryService

import (
	"context"
	"fmt"
	"strings"

	"compliance-rag/internal/access"
	"compliance-rag/internal/apperr"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/rag"
	"compliance-rag/internal/validation"
)

// QueryEngine answers questions and logs every attempt.
// This interface is defined from the service layer's perspective (consumer-first).
type QueryEngine interface {
	Query(ctx context.Context, userID, question string) (rag.Response, error)
	BatchQuery(ctx context.Context, userID string, questions []string) ([]rag.Response, error)
}

// UserDirectory checks permissions and records user activity.
type UserDirectory interface {
	CheckPermission(ctx context.Context, userID string, p access.Permission) bool
	RecordActivity(ctx context.Context, userID string) error
}

// QueryRequest is a single question asked on behalf of a user.
type QueryRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	Question string `json:"question" validate:"required,max=4000"`
}

// BatchRequest is a list of questions answered in order.
type BatchRequest struct {
	UserID    string   `json:"user_id" validate:"required,max=128"`
	Questions []string `json:"questions" validate:"required,min=1,max=50,dive,required,max=4000"`
}

// QueryService gates questions by permission and tracks who asked them.
type QueryService interface {
	// Ask answers one question. The Response is filled whenever the query
	// ran, including when the returned error reports an audit failure.
	Ask(ctx context.Context, req QueryRequest) (rag.Response, error)
	// AskBatch answers questions sequentially.
	AskBatch(ctx context.Context, req BatchRequest) ([]rag.Response, error)
}

type queryService struct {
	engine   QueryEngine
	users    UserDirectory
	validate *validation.Validator
}

// NewQueryService creates a QueryService.
func NewQueryService(engine QueryEngine, users UserDirectory) QueryService {
	return &queryService{
		engine:   engine,
		users:    users,
		validate: validation.New(),
	}
}

// Ask answers a question if the user may query the knowledge base.
func (s *queryService) Ask(ctx context.Context, req QueryRequest) (rag.Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.UserID = strings.TrimSpace(req.UserID)
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "invalid query request", "error", err)
		return rag.Response{}, err
	}
	if err := s.authorize(ctx, req.UserID); err != nil {
		return rag.Response{}, err
	}

	resp, err := s.engine.Query(ctx, req.UserID, req.Question)
	if err != nil {
		return resp, apperr.WrapError(err, "query failed")
	}
	s.recordActivity(ctx, req.UserID, 1)

	logger.InfoContext(ctx, "query answered", "user_id", req.UserID, "num_sources", resp.NumSources)
	return resp, nil
}

// AskBatch answers every question if the user may query the knowledge base.
func (s *queryService) AskBatch(ctx context.Context, req BatchRequest) ([]rag.Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.UserID = strings.TrimSpace(req.UserID)
	for i, q := range req.Questions {
		req.Questions[i] = strings.TrimSpace(q)
	}
	if err := s.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "invalid batch request", "error", err)
		return nil, err
	}
	if err := s.authorize(ctx, req.UserID); err != nil {
		return nil, err
	}

	responses, err := s.engine.BatchQuery(ctx, req.UserID, req.Questions)
	s.recordActivity(ctx, req.UserID, len(responses))
	if err != nil {
		return responses, apperr.WrapError(err, "batch query failed")
	}

	logger.InfoContext(ctx, "batch answered", "user_id", req.UserID, "questions", len(responses))
	return responses, nil
}

func (s *queryService) authorize(ctx context.Context, userID string) error {
	if !s.users.CheckPermission(ctx, userID, access.PermQueryRAG) {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "query denied", "user_id", userID)
		return fmt.Errorf("user %q may not query the knowledge base: %w", userID, apperr.ErrForbidden)
	}
	return nil
}

// recordActivity counts n queries for the user. The answers were already
// logged, so a failure here is reported but not returned.
func (s *queryService) recordActivity(ctx context.Context, userID string, n int) {
	for range n {
		if err := s.users.RecordActivity(ctx, userID); err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to record user activity", "user_id", userID, "error", err)
			return
		}
	}
}
