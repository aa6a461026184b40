package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"compliance-rag/internal/access"
	"compliance-rag/internal/apperr"
	"compliance-rag/internal/storage"
	"compliance-rag/internal/validation"
)

// UserAdmin is the access control surface served over HTTP.
type UserAdmin interface {
	Authorizer
	CreateUser(ctx context.Context, u access.NewUser) (bool, error)
	ChangeRole(ctx context.Context, id string, role access.Role) (bool, error)
	Deactivate(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*storage.UserRecord, error)
	UsersByRole(ctx context.Context, role access.Role) ([]storage.UserRecord, error)
	AllUsers(ctx context.Context, includeInactive bool) ([]storage.UserRecord, error)
	UsageReport(ctx context.Context) (access.UsageReport, error)
	SyncWithAuditLog(ctx context.Context, logs access.LogSource) (int, error)
}

// UsersHandler manages users and roles.
type UsersHandler struct {
	users    UserAdmin
	logs     access.LogSource
	validate *validation.Validator
}

// NewUsersHandler creates a new UsersHandler. logs feeds activity syncs.
func NewUsersHandler(users UserAdmin, logs access.LogSource) *UsersHandler {
	return &UsersHandler{users: users, logs: logs, validate: validation.New()}
}

// RoleRequest changes a user's role.
type RoleRequest struct {
	Role access.Role `json:"role" validate:"required"`
}

// List answers GET /api/v1/users with optional role and include_inactive
// filters. A role filter lists active users only.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		users []storage.UserRecord
		err   error
	)
	if role := q.Get("role"); role != "" {
		if !access.Role(role).Valid() {
			writeAppError(ctx, w, &apperr.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}, "invalid user list request")
			return
		}
		users, err = h.users.UsersByRole(ctx, access.Role(role))
	} else {
		includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))
		users, err = h.users.AllUsers(ctx, includeInactive)
	}
	if err != nil {
		writeAppError(ctx, w, err, "failed to list users")
		return
	}
	writeJSON(ctx, w, http.StatusOK, nonNil(users))
}

// Get answers GET /api/v1/users/{id}. Users may read their own profile;
// anyone else needs can_manage_users.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	caller := callerID(r)
	if caller == "" {
		writeAppError(ctx, w, &apperr.ValidationError{Field: UserIDHeader, Message: "header is required"}, "missing caller identity")
		return
	}
	if caller != id && !h.users.CheckPermission(ctx, caller, access.PermManageUsers) {
		writeAppError(ctx, w, fmt.Errorf("user %q may not read user %q: %w", caller, id, apperr.ErrForbidden), "permission denied")
		return
	}

	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		writeAppError(ctx, w, err, "failed to get user")
		return
	}
	writeJSON(ctx, w, http.StatusOK, user)
}

// Create answers POST /api/v1/users. A known id answers 200 with
// created=false.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var u access.NewUser
	if err := decodeJSON(r, &u); err != nil {
		writeAppError(ctx, w, err, "invalid user")
		return
	}
	u.UserID = strings.TrimSpace(u.UserID)
	if err := h.validate.Struct(u); err != nil {
		writeAppError(ctx, w, err, "invalid user")
		return
	}

	created, err := h.users.CreateUser(ctx, u)
	if err != nil {
		writeAppError(ctx, w, err, "failed to create user")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(ctx, w, status, MutationResponse{ID: u.UserID, Created: created})
}

// Role answers PUT /api/v1/users/{id}/role.
func (h *UsersHandler) Role(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(ctx, w, err, "invalid role change")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeAppError(ctx, w, err, "invalid role change")
		return
	}

	changed, err := h.users.ChangeRole(ctx, id, req.Role)
	if err != nil {
		writeAppError(ctx, w, err, "failed to change role")
		return
	}
	if !changed {
		writeAppError(ctx, w, fmt.Errorf("user %q: %w", id, apperr.ErrNotFound), "failed to change role")
		return
	}
	writeJSON(ctx, w, http.StatusOK, MutationResponse{ID: id})
}

// Deactivate answers POST /api/v1/users/{id}/deactivate.
func (h *UsersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.users.Deactivate(ctx, id); err != nil {
		writeAppError(ctx, w, err, "failed to deactivate user")
		return
	}
	writeJSON(ctx, w, http.StatusOK, MutationResponse{ID: id})
}

// Report answers GET /api/v1/users/report.
func (h *UsersHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.users.UsageReport(ctx)
	if err != nil {
		writeAppError(ctx, w, err, "failed to build user usage report")
		return
	}
	writeJSON(ctx, w, http.StatusOK, report)
}

// Sync answers POST /api/v1/users/sync, recounting activity from the
// audit log.
func (h *UsersHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.logs == nil {
		writeAppError(ctx, w, &apperr.ConfigurationError{Component: "audit log", Err: apperr.ErrNotFound}, "sync unavailable")
		return
	}
	updated, err := h.users.SyncWithAuditLog(ctx, h.logs)
	if err != nil {
		writeAppError(ctx, w, err, "failed to sync user activity")
		return
	}
	writeJSON(ctx, w, http.StatusOK, MutationResponse{ID: "users", Updated: updated})
}
