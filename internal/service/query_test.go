package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"compliance-rag/internal/access"
	"compliance-rag/internal/apperr"
	"compliance-rag/internal/rag"
	"compliance-rag/internal/service"
	"compliance-rag/internal/service/mocks"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testContext() context.Context {
	return context.Background()
}

func TestQueryService_Ask(t *testing.T) {
	answered := rag.Response{Question: "What is PPE?", Answer: "Gloves [Source 1].", NumSources: 1, Model: "llama3.1:8b"}

	tests := []struct {
		name         string
		req          service.QueryRequest
		mockSetup    func(engine *mocks.MockQueryEngine, users *mocks.MockUserDirectory)
		wantAnswer   string
		checkErrType func(error) bool
	}{
		{
			name: "permitted user",
			req:  service.QueryRequest{UserID: "EMP0001", Question: "  What is PPE?  "},
			mockSetup: func(engine *mocks.MockQueryEngine, users *mocks.MockUserDirectory) {
				users.EXPECT().CheckPermission(gomock.Any(), "EMP0001", access.PermQueryRAG).Return(true)
				engine.EXPECT().Query(gomock.Any(), "EMP0001", "What is PPE?").Return(answered, nil)
				users.EXPECT().RecordActivity(gomock.Any(), "EMP0001").Return(nil)
			},
			wantAnswer: "Gloves [Source 1].",
		},
		{
			name: "denied user is not queried",
			req:  service.QueryRequest{UserID: "EMP0002", Question: "What is PPE?"},
			mockSetup: func(engine *mocks.MockQueryEngine, users *mocks.MockUserDirectory) {
				users.EXPECT().CheckPermission(gomock.Any(), "EMP0002", access.PermQueryRAG).Return(false)
			},
			checkErrType: func(err error) bool { return errors.Is(err, apperr.ErrForbidden) },
		},
		{
			name:      "empty question",
			req:       service.QueryRequest{UserID: "EMP0001", Question: "   "},
			mockSetup: func(*mocks.MockQueryEngine, *mocks.MockUserDirectory) {},
			checkErrType: func(err error) bool {
				var vErr *apperr.ValidationError
				return errors.As(err, &vErr) && vErr.Field == "question"
			},
		},
		{
			name:      "missing user",
			req:       service.QueryRequest{Question: "What is PPE?"},
			mockSetup: func(*mocks.MockQueryEngine, *mocks.MockUserDirectory) {},
			checkErrType: func(err error) bool {
				var vErr *apperr.ValidationError
				return errors.As(err, &vErr) && vErr.Field == "user_id"
			},
		},
		{
			name:      "oversized question",
			req:       service.QueryRequest{UserID: "EMP0001", Question: strings.Repeat("q", 4001)},
			mockSetup: func(*mocks.MockQueryEngine, *mocks.MockUserDirectory) {},
			checkErrType: func(err error) bool {
				return errors.Is(err, apperr.ErrInvalidInput)
			},
		},
		{
			name: "audit failure is returned with the response",
			req:  service.QueryRequest{UserID: "EMP0001", Question: "What is PPE?"},
			mockSetup: func(engine *mocks.MockQueryEngine, users *mocks.MockUserDirectory) {
				users.EXPECT().CheckPermission(gomock.Any(), "EMP0001", access.PermQueryRAG).Return(true)
				engine.EXPECT().Query(gomock.Any(), "EMP0001", "What is PPE?").Return(answered, errors.New("disk full"))
			},
			wantAnswer:   "Gloves [Source 1].",
			checkErrType: func(err error) bool { return err != nil && strings.Contains(err.Error(), "disk full") },
		},
		{
			name: "activity failure does not fail the query",
			req:  service.QueryRequest{UserID: "EMP0001", Question: "What is PPE?"},
			mockSetup: func(engine *mocks.MockQueryEngine, users *mocks.MockUserDirectory) {
				users.EXPECT().CheckPermission(gomock.Any(), "EMP0001", access.PermQueryRAG).Return(true)
				engine.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(answered, nil)
				users.EXPECT().RecordActivity(gomock.Any(), "EMP0001").Return(errors.New("locked"))
			},
			wantAnswer: "Gloves [Source 1].",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := mocks.NewMockQueryEngine(ctrl)
			users := mocks.NewMockUserDirectory(ctrl)
			tt.mockSetup(engine, users)

			svc := service.NewQueryService(engine, users)
			resp, err := svc.Ask(testContext(), tt.req)

			if tt.checkErrType != nil {
				if !tt.checkErrType(err) {
					t.Errorf("Ask() error = %v, unexpected type", err)
				}
			} else if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if resp.Answer != tt.wantAnswer {
				t.Errorf("Ask() answer = %q, want %q", resp.Answer, tt.wantAnswer)
			}
		})
	}
}

func TestQueryService_AskBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockQueryEngine(ctrl)
	users := mocks.NewMockUserDirectory(ctrl)
	svc := service.NewQueryService(engine, users)

	responses := []rag.Response{{Question: "a?"}, {Question: "b?"}}
	users.EXPECT().CheckPermission(gomock.Any(), "TRN01", access.PermQueryRAG).Return(true)
	engine.EXPECT().BatchQuery(gomock.Any(), "TRN01", []string{"a?", "b?"}).Return(responses, nil)
	users.EXPECT().RecordActivity(gomock.Any(), "TRN01").Return(nil).Times(2)

	got, err := svc.AskBatch(testContext(), service.BatchRequest{UserID: "TRN01", Questions: []string{" a? ", "b?"}})
	if err != nil {
		t.Fatalf("AskBatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("AskBatch() returned %d responses, want 2", len(got))
	}
}

func TestQueryService_AskBatch_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		questions []string
		wantField string
	}{
		{"no questions", nil, "questions"},
		{"blank question", []string{"ok?", "  "}, "questions[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := service.NewQueryService(mocks.NewMockQueryEngine(ctrl), mocks.NewMockUserDirectory(ctrl))

			_, err := svc.AskBatch(testContext(), service.BatchRequest{UserID: "EMP0001", Questions: tt.questions})
			var vErr *apperr.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("AskBatch() error = %v, want ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestQueryService_AskBatch_PartialAuditFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockQueryEngine(ctrl)
	users := mocks.NewMockUserDirectory(ctrl)
	svc := service.NewQueryService(engine, users)

	users.EXPECT().CheckPermission(gomock.Any(), "EMP0001", access.PermQueryRAG).Return(true)
	engine.EXPECT().BatchQuery(gomock.Any(), "EMP0001", gomock.Any()).
		Return([]rag.Response{{Question: "a?"}}, errors.New("question 2: disk full"))
	users.EXPECT().RecordActivity(gomock.Any(), "EMP0001").Return(nil).Times(1)

	got, err := svc.AskBatch(testContext(), service.BatchRequest{UserID: "EMP0001", Questions: []string{"a?", "b?"}})
	if err == nil {
		t.Fatal("AskBatch() error = nil, want audit failure")
	}
	if len(got) != 1 {
		t.Errorf("AskBatch() returned %d responses, want 1", len(got))
	}
}
