package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// UserRepo stores user profiles in SQLite.
// It implements the UserStore interface.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `user_id, name, email, role, department, permissions, access_level,
	created_date, last_active, query_count, status, deactivated_date`

func scanUser(row rowScanner) (*UserRecord, error) {
	var (
		rec                 UserRecord
		perms, created      string
		active, deactivated sql.NullString
	)
	err := row.Scan(&rec.UserID, &rec.Name, &rec.Email, &rec.Role, &rec.Department, &perms, &rec.AccessLevel,
		&created, &active, &rec.QueryCount, &rec.Status, &deactivated)
	if err != nil {
		return nil, err
	}

	if rec.CreatedDate, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.LastActive, err = parseNullTime(active); err != nil {
		return nil, err
	}
	if rec.DeactivatedDate, err = parseNullTime(deactivated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perms), &rec.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return &rec, nil
}

// Get returns the user with id or ErrNotFound.
func (r *UserRepo) Get(ctx context.Context, id string) (*UserRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE user_id = ?", id)
	rec, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return rec, nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]UserRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return recs, nil
}

// Put inserts or replaces rec.
func (r *UserRepo) Put(ctx context.Context, rec *UserRecord) error {
	return r.PutAll(ctx, []UserRecord{*rec})
}

// PutAll inserts or replaces recs in one transaction.
func (r *UserRepo) PutAll(ctx context.Context, recs []UserRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			department = excluded.department,
			permissions = excluded.permissions,
			access_level = excluded.access_level,
			created_date = excluded.created_date,
			last_active = excluded.last_active,
			query_count = excluded.query_count,
			status = excluded.status,
			deactivated_date = excluded.deactivated_date`)
	if err != nil {
		return fmt.Errorf("failed to prepare user upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range recs {
		perms, err := json.Marshal(nonNil(rec.Permissions))
		if err != nil {
			return fmt.Errorf("failed to encode permissions: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.UserID, rec.Name, rec.Email, rec.Role, rec.Department, string(perms), rec.AccessLevel,
			formatTime(rec.CreatedDate), formatNullTime(rec.LastActive), rec.QueryCount, rec.Status,
			formatNullTime(rec.DeactivatedDate),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", rec.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit users: %w", err)
	}
	return nil
}
