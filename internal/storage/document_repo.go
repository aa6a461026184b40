package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

// DocumentRepo stores registry entries in SQLite.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id, source_url, document_type, classification, added_date, version,
	last_verified, last_updated, times_referenced, status, retention_years, tags, archived_date`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*DocumentRecord, error) {
	var (
		rec                            DocumentRecord
		added, verified, updated, tags string
		archived                       sql.NullString
	)
	err := row.Scan(&rec.DocumentID, &rec.SourceURL, &rec.DocumentType, &rec.Classification, &added, &rec.Version,
		&verified, &updated, &rec.TimesReferenced, &rec.Status, &rec.RetentionYears, &tags, &archived)
	if err != nil {
		return nil, err
	}

	if rec.AddedDate, err = parseTime(added); err != nil {
		return nil, err
	}
	if rec.LastVerified, err = parseTime(verified); err != nil {
		return nil, err
	}
	if rec.LastUpdated, err = parseTime(updated); err != nil {
		return nil, err
	}
	if rec.ArchivedDate, err = parseNullTime(archived); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return &rec, nil
}

// Get returns the document with id or ErrNotFound.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE document_id = ?", id)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return rec, nil
}

// List returns all documents ordered by id.
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY document_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return recs, nil
}

// Put inserts or replaces rec.
func (r *DocumentRepo) Put(ctx context.Context, rec *DocumentRecord) error {
	return r.PutAll(ctx, []DocumentRecord{*rec})
}

// PutAll inserts or replaces recs in one transaction.
func (r *DocumentRepo) PutAll(ctx context.Context, recs []DocumentRecord) error {
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

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			source_url = excluded.source_url,
			document_type = excluded.document_type,
			classification = excluded.classification,
			added_date = excluded.added_date,
			version = excluded.version,
			last_verified = excluded.last_verified,
			last_updated = excluded.last_updated,
			times_referenced = excluded.times_referenced,
			status = excluded.status,
			retention_years = excluded.retention_years,
			tags = excluded.tags,
			archived_date = excluded.archived_date`)
	if err != nil {
		return fmt.Errorf("failed to prepare document upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range recs {
		tags, err := json.Marshal(nonNil(rec.Tags))
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.DocumentID, rec.SourceURL, rec.DocumentType, rec.Classification,
			formatTime(rec.AddedDate), rec.Version, formatTime(rec.LastVerified), formatTime(rec.LastUpdated),
			rec.TimesReferenced, rec.Status, rec.RetentionYears, string(tags), formatNullTime(rec.ArchivedDate),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", rec.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
