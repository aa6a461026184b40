// Package access evaluates role-based permissions and tracks user activity.
package access

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/storage"
)

// User statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

const (
	mostActiveLimit = 10
	emailDomain     = "healthcare.example.com"
)

// NewUser describes a user to create.
type NewUser struct {
	UserID     string `json:"user_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       Role   `json:"role" validate:"required"`
	Department string `json:"department"`
}

// Profile is an employee profile imported as a user.
type Profile struct {
	EmployeeID      string `json:"employee_id"`
	Role            string `json:"role"`
	ExperienceLevel string `json:"experience_level"`
}

// ActiveUser is one row of the most-active ranking.
type ActiveUser struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	QueryCount int    `json:"query_count"`
}

// UsageReport summarizes users and their activity.
type UsageReport struct {
	TotalUsers      int          `json:"total_users"`
	ActiveUsers     int          `json:"active_users"`
	ByRole          map[Role]int `json:"by_role"`
	MostActiveUsers []ActiveUser `json:"most_active_users"`
	NeverQueried    int          `json:"never_queried"`
}

// LogSource supplies audit entries for activity syncs.
type LogSource interface {
	GetLogs(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Control manages users over a UserStore.
type Control struct {
	store storage.UserStore
	now   func() time.Time
	mu    sync.Mutex
}

// Option configures a Control.
type Option func(*Control)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Control) {
		c.now = now
	}
}

// New creates a Control over store.
func New(store storage.UserStore, opts ...Option) *Control {
	c := &Control{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateUser adds a user with the bundle of its role. An unknown role is a
// validation error; an existing id logs a warning and changes nothing.
func (c *Control) CreateUser(ctx context.Context, u NewUser) (created bool, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	if u.UserID == "" {
		return false, &apperr.ValidationError{Field: "user_id", Message: "must not be empty"}
	}
	bundle, ok := BundleFor(u.Role)
	if !ok {
		return false, &apperr.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", u.Role)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.store.Get(ctx, u.UserID)
	if err == nil {
		logger.WarnContext(ctx, "user already exists", "user_id", u.UserID)
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	rec := storage.UserRecord{
		UserID:      u.UserID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		Department:  u.Department,
		Permissions: permissionNames(bundle.Permissions),
		AccessLevel: bundle.AccessLevel,
		CreatedDate: c.now(),
		Status:      StatusActive,
	}
	if err := c.store.Put(ctx, &rec); err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	logger.InfoContext(ctx, "user created", "user_id", rec.UserID, "role", rec.Role)
	return true, nil
}

func (c *Control) update(ctx context.Context, id string, fn func(*storage.UserRecord)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	fn(rec)
	if err := c.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return nil
}

// RecordActivity counts one query for the user and stamps last_active.
func (c *Control) RecordActivity(ctx context.Context, id string) error {
	return c.update(ctx, id, func(rec *storage.UserRecord) {
		now := c.now()
		rec.LastActive = &now
		rec.QueryCount++
	})
}

// ChangeRole replaces the user's role and whole permission bundle.
// It reports false for an unknown user.
func (c *Control) ChangeRole(ctx context.Context, id string, role Role) (bool, error) {
	bundle, ok := BundleFor(role)
	if !ok {
		return false, &apperr.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}

	var oldRole string
	err := c.update(ctx, id, func(rec *storage.UserRecord) {
		oldRole = rec.Role
		rec.Role = string(role)
		rec.Permissions = permissionNames(bundle.Permissions)
		rec.AccessLevel = bundle.AccessLevel
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "user role changed", "user_id", id, "from", oldRole, "to", role)
	return true, nil
}

// Deactivate disables the user. Inactive users hold no permissions.
func (c *Control) Deactivate(ctx context.Context, id string) error {
	return c.update(ctx, id, func(rec *storage.UserRecord) {
		if rec.Status == StatusInactive {
			return
		}
		now := c.now()
		rec.Status = StatusInactive
		rec.DeactivatedDate = &now
	})
}

// CheckPermission reports whether the user is active and the user's role
// grants p. The stored permission list is not consulted. Unknown users,
// unknown roles and store failures deny.
func (c *Control) CheckPermission(ctx context.Context, id string, p Permission) bool {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "permission lookup failed", "user_id", id, "error", err)
		}
		return false
	}
	if rec.Status != StatusActive {
		return false
	}
	bundle, ok := BundleFor(Role(rec.Role))
	if !ok {
		return false
	}
	return bundle.Has(p)
}

// GetUser returns the user or an error matching apperr.ErrNotFound.
func (c *Control) GetUser(ctx context.Context, id string) (*storage.UserRecord, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return rec, nil
}

// UsersByRole returns the active users holding role.
func (c *Control) UsersByRole(ctx context.Context, role Role) ([]storage.UserRecord, error) {
	users, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []storage.UserRecord{}
	for _, u := range users {
		if u.Role == string(role) && u.Status == StatusActive {
			out = append(out, u)
		}
	}
	return out, nil
}

// AllUsers returns the active users, or every user when includeInactive is set.
func (c *Control) AllUsers(ctx context.Context, includeInactive bool) ([]storage.UserRecord, error) {
	users, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return users, nil
	}
	return slices.DeleteFunc(users, func(u storage.UserRecord) bool {
		return u.Status != StatusActive
	}), nil
}

// SyncWithAuditLog recounts queries per user from the whole audit log and
// overwrites query_count and last_active of every known user that appears
// in it. It returns the number of users updated.
func (c *Control) SyncWithAuditLog(ctx context.Context, logs LogSource) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	entries, err := logs.GetLogs(ctx, audit.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}

	type activity struct {
		count int
		last  *time.Time
	}
	seen := make(map[string]*activity)
	for _, e := range entries {
		a, ok := seen[e.UserID]
		if !ok {
			a = &activity{}
			seen[e.UserID] = a
		}
		a.count++
		ts, err := e.Time()
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed audit timestamp", "query_id", e.QueryID, "error", err)
			continue
		}
		a.last = &ts
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	var changed []storage.UserRecord
	for _, u := range users {
		a, ok := seen[u.UserID]
		if !ok {
			continue
		}
		u.QueryCount = a.count
		if a.last != nil {
			u.LastActive = a.last
		}
		changed = append(changed, u)
	}
	if err := c.store.PutAll(ctx, changed); err != nil {
		return 0, fmt.Errorf("failed to store user activity: %w", err)
	}

	logger.InfoContext(ctx, "users synced with audit log", "entries", len(entries), "updated", len(changed))
	return len(changed), nil
}

// UsageReport summarizes users by status, role and activity.
func (c *Control) UsageReport(ctx context.Context) (UsageReport, error) {
	users, err := c.store.List(ctx)
	if err != nil {
		return UsageReport{}, err
	}

	report := UsageReport{
		TotalUsers:      len(users),
		ByRole:          make(map[Role]int, len(roleOrder)),
		MostActiveUsers: []ActiveUser{},
	}
	for _, r := range roleOrder {
		report.ByRole[r] = 0
	}
	for _, u := range users {
		if u.Status != StatusActive {
			continue
		}
		report.ActiveUsers++
		if _, ok := report.ByRole[Role(u.Role)]; ok {
			report.ByRole[Role(u.Role)]++
		}
		if u.QueryCount == 0 {
			report.NeverQueried++
		}
	}

	ranked := slices.Clone(users)
	slices.SortStableFunc(ranked, func(a, b storage.UserRecord) int {
		return cmp.Compare(b.QueryCount, a.QueryCount)
	})
	for _, u := range ranked[:min(mostActiveLimit, len(ranked))] {
		if u.QueryCount == 0 {
			break
		}
		report.MostActiveUsers = append(report.MostActiveUsers, ActiveUser{
			UserID:     u.UserID,
			Name:       u.Name,
			Role:       u.Role,
			QueryCount: u.QueryCount,
		})
	}
	return report, nil
}

// ImportProfiles creates a user for every profile not yet known. Senior
// staff become trainers, everyone else employees. It returns the number of
// users created.
func (c *Control) ImportProfiles(ctx context.Context, profiles []Profile) (int, error) {
	imported := 0
	for _, p := range profiles {
		if p.EmployeeID == "" {
			continue
		}
		role := RoleEmployee
		if p.ExperienceLevel == "senior" {
			role = RoleTrainer
		}
		created, err := c.CreateUser(ctx, NewUser{
			UserID:     p.EmployeeID,
			Name:       strings.TrimSpace(p.Role + " " + p.EmployeeID),
			Email:      strings.ToLower(p.EmployeeID) + "@" + emailDomain,
			Role:       role,
			Department: p.Role,
		})
		if err != nil {
			return imported, err
		}
		if created {
			imported++
		}
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "employee profiles imported", "profiles", len(profiles), "created", imported)
	return imported, nil
}
