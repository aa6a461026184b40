// Package handlers implements the JSON HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"compliance-rag/internal/access"
	"compliance-rag/internal/apperr"
	"compliance-rag/internal/contextutil"
)

// UserIDHeader identifies the caller. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// Authorizer checks a user's permissions.
type Authorizer interface {
	CheckPermission(ctx context.Context, userID string, p access.Permission) bool
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
	// Field names the offending input for validation errors.
	Field string `json:"field,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var cfgErr *apperr.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError logs err and writes it with the mapped status. Server
// side failures hide their details.
func writeAppError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	logger := contextutil.LoggerFromContext(ctx)
	status := statusFor(err)

	resp := ErrorResponse{Error: err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, "error", err, "status", status)
		if status == http.StatusInternalServerError {
			resp.Error = msg
		}
	} else {
		logger.WarnContext(ctx, msg, "error", err, "status", status)
	}
	writeJSON(ctx, w, status, resp)
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &apperr.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// callerID returns the trimmed X-User-ID header.
func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// intQuery parses an optional positive integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &apperr.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

// RequirePermission rejects requests whose X-User-ID lacks p. A missing
// header is a validation error; unknown or inactive users are forbidden.
func RequirePermission(auth Authorizer, p access.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := callerID(r)
			if userID == "" {
				writeAppError(ctx, w, &apperr.ValidationError{Field: UserIDHeader, Message: "header is required"}, "missing caller identity")
				return
			}
			if !auth.CheckPermission(ctx, userID, p) {
				err := fmt.Errorf("user %q lacks permission %s: %w", userID, p, apperr.ErrForbidden)
				writeAppError(ctx, w, err, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
