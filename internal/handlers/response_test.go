package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"compliance-rag/internal/access"
	"compliance-rag/internal/apperr"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// newRequest builds a request with an optional caller id and body.
func newRequest(method, target, user, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	return req
}

// withURLParams attaches chi route parameters to req.
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &apperr.ValidationError{Field: "question", Message: "cannot be empty"}, want: http.StatusBadRequest},
		{name: "forbidden", err: fmt.Errorf("denied: %w", apperr.ErrForbidden), want: http.StatusForbidden},
		{name: "not found", err: fmt.Errorf("doc: %w", apperr.ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: apperr.ErrConflict, want: http.StatusConflict},
		{name: "retrieval", err: &apperr.RetrievalFailure{Err: errors.New("down")}, want: http.StatusBadGateway},
		{name: "configuration wins over wrapped cause", err: &apperr.ConfigurationError{Component: "audit log", Err: apperr.ErrNotFound}, want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteAppError(t *testing.T) {
	t.Run("validation error names the field", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeAppError(context.Background(), w, &apperr.ValidationError{Field: "role", Message: "unknown"}, "bad input")

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		resp := decodeBody[ErrorResponse](t, w)
		if resp.Field != "role" {
			t.Errorf("field = %q, want role", resp.Field)
		}
	})

	t.Run("internal error hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeAppError(context.Background(), w, errors.New("open /secret/path: permission denied"), "failed to list users")

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		resp := decodeBody[ErrorResponse](t, w)
		if resp.Error != "failed to list users" {
			t.Errorf("error = %q, want the generic message", resp.Error)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"question":"hi"}`},
		{name: "malformed", body: `{"question":`, wantErr: true},
		{name: "unknown field", body: `{"question":"hi","debug":true}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req AskRequest
			err := decodeJSON(newRequest(http.MethodPost, "/", "", tt.body), &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("decodeJSON() error = %v, want invalid input", err)
			}
		})
	}
}

func TestIntQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 30},
		{query: "days=7", want: 7},
		{query: "days=0", wantErr: true},
		{query: "days=-1", wantErr: true},
		{query: "days=week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := intQuery(newRequest(http.MethodGet, "/?"+tt.query, "", ""), "days", 30)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("intQuery() = %d, want %d", got, tt.want)
			}
		})
	}
}

type stubAuthorizer map[string][]access.Permission

func (s stubAuthorizer) CheckPermission(_ context.Context, userID string, p access.Permission) bool {
	for _, have := range s[userID] {
		if have == p {
			return true
		}
	}
	return false
}

func TestRequirePermission(t *testing.T) {
	auth := stubAuthorizer{
		"auditor": {access.PermViewAuditLogs},
		"emp":     {access.PermQueryRAG},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequirePermission(auth, access.PermViewAuditLogs)(next)

	tests := []struct {
		name       string
		user       string
		wantStatus int
	}{
		{name: "granted", user: "auditor", wantStatus: http.StatusNoContent},
		{name: "lacks permission", user: "emp", wantStatus: http.StatusForbidden},
		{name: "unknown user", user: "ghost", wantStatus: http.StatusForbidden},
		{name: "missing header", user: "", wantStatus: http.StatusBadRequest},
		{name: "blank header", user: "   ", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, newRequest(http.MethodGet, "/", tt.user, ""))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
