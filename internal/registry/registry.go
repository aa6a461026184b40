// Package registry tracks the lifecycle and reference counts of the
// source documents behind the index.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"compliance-rag/internal/apperr"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/chunker"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/storage"
)

// Document statuses. Archival is terminal.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

const (
	DefaultDocumentType   = "compliance"
	ReferenceDocumentType = "reference"
	DefaultClassification = "public"
	DefaultVersion        = "1.0"
	DefaultRetentionYears = 7
	// DefaultStaleDays is the verification window used by the dashboard.
	DefaultStaleDays = 365

	defaultPublicationURL = "https://www.osha.gov/publications"
	mostReferencedLimit   = 10
)

// Registration describes a document to register. Empty fields take defaults.
type Registration struct {
	DocumentID     string   `json:"document_id" validate:"required"`
	SourceURL      string   `json:"source_url"`
	DocumentType   string   `json:"document_type"`
	Classification string   `json:"classification"`
	Version        string   `json:"version"`
	Tags           []string `json:"tags"`
}

// StaleDocument is an active document overdue for verification.
type StaleDocument struct {
	DocumentID            string    `json:"document_id"`
	LastVerified          time.Time `json:"last_verified"`
	DaysSinceVerification int       `json:"days_since_verification"`
	DocumentType          string    `json:"document_type"`
}

// ReferenceCount is one row of the most-referenced ranking.
type ReferenceCount struct {
	DocumentID      string `json:"document_id"`
	TimesReferenced int    `json:"times_referenced"`
	DocumentType    string `json:"document_type"`
}

// UsageReport summarizes the registry.
type UsageReport struct {
	TotalDocuments       int              `json:"total_documents"`
	ActiveDocuments      int              `json:"active_documents"`
	ArchivedDocuments    int              `json:"archived_documents"`
	ByType               map[string]int   `json:"by_type"`
	ByClassification     map[string]int   `json:"by_classification"`
	MostReferenced       []ReferenceCount `json:"most_referenced"`
	NeverReferenced      []string         `json:"never_referenced"`
	NeverReferencedCount int              `json:"never_referenced_count"`
}

// LogSource supplies audit entries for reference-count syncs.
type LogSource interface {
	GetLogs(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Registry manages document registry entries over a DocumentStore.
// Mutations are serialized; each one is a single read-modify-write.
type Registry struct {
	store storage.DocumentStore
	now   func() time.Time
	mu    sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a Registry over store.
func New(store storage.DocumentStore, opts ...Option) *Registry {
	r := &Registry{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) newRecord(reg Registration) storage.DocumentRecord {
	now := r.now()
	rec := storage.DocumentRecord{
		DocumentID:     reg.DocumentID,
		SourceURL:      reg.SourceURL,
		DocumentType:   cmp.Or(reg.DocumentType, DefaultDocumentType),
		Classification: cmp.Or(reg.Classification, DefaultClassification),
		AddedDate:      now,
		Version:        cmp.Or(reg.Version, DefaultVersion),
		LastVerified:   now,
		LastUpdated:    now,
		Status:         StatusActive,
		RetentionYears: DefaultRetentionYears,
		Tags:           slices.Clone(reg.Tags),
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec
}

// Register adds a document. Registering an existing id logs a warning and
// leaves the entry untouched; created reports whether anything was written.
func (r *Registry) Register(ctx context.Context, reg Registration) (created bool, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	if reg.DocumentID == "" {
		return false, &apperr.ValidationError{Field: "document_id", Message: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.store.Get(ctx, reg.DocumentID)
	if err == nil {
		logger.WarnContext(ctx, "document already registered", "document_id", reg.DocumentID)
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("failed to look up document: %w", err)
	}

	rec := r.newRecord(reg)
	if err := r.store.Put(ctx, &rec); err != nil {
		return false, fmt.Errorf("failed to register document: %w", err)
	}
	logger.InfoContext(ctx, "document registered", "document_id", rec.DocumentID, "document_type", rec.DocumentType)
	return true, nil
}

// update applies fn to the stored document and writes it back.
func (r *Registry) update(ctx context.Context, id string, fn func(*storage.DocumentRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	fn(rec)
	if err := r.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

// IncrementReference adds by to the document's reference count.
func (r *Registry) IncrementReference(ctx context.Context, id string, by int) error {
	if by < 0 {
		return &apperr.ValidationError{Field: "by", Message: "reference counts only increase"}
	}
	return r.update(ctx, id, func(rec *storage.DocumentRecord) {
		rec.TimesReferenced += by
	})
}

// MarkVerified stamps the document as reviewed now.
func (r *Registry) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, func(rec *storage.DocumentRecord) {
		rec.LastVerified = r.now()
	})
}

// UpdateVersion records a new document version.
func (r *Registry) UpdateVersion(ctx context.Context, id, version string) error {
	if version == "" {
		return &apperr.ValidationError{Field: "version", Message: "must not be empty"}
	}
	return r.update(ctx, id, func(rec *storage.DocumentRecord) {
		rec.Version = version
		rec.LastUpdated = r.now()
	})
}

// Archive moves the document to the terminal archived state. Archiving an
// archived document keeps its original archival date.
func (r *Registry) Archive(ctx context.Context, id string) error {
	return r.update(ctx, id, func(rec *storage.DocumentRecord) {
		if rec.Status == StatusArchived {
			return
		}
		now := r.now()
		rec.Status = StatusArchived
		rec.ArchivedDate = &now
	})
}

// Get returns the document or an error matching apperr.ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*storage.DocumentRecord, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return rec, nil
}

// List returns every document ordered by id.
func (r *Registry) List(ctx context.Context) ([]storage.DocumentRecord, error) {
	return r.store.List(ctx)
}

// StaleDocuments returns active documents last verified more than days
// ago, most overdue first.
func (r *Registry) StaleDocuments(ctx context.Context, days int) ([]StaleDocument, error) {
	docs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	cutoff := now.AddDate(0, 0, -days)
	stale := []StaleDocument{}
	for _, d := range docs {
		if d.Status != StatusActive || !d.LastVerified.Before(cutoff) {
			continue
		}
		stale = append(stale, StaleDocument{
			DocumentID:            d.DocumentID,
			LastVerified:          d.LastVerified,
			DaysSinceVerification: int(now.Sub(d.LastVerified).Hours() / 24),
			DocumentType:          d.DocumentType,
		})
	}
	slices.SortStableFunc(stale, func(a, b StaleDocument) int {
		return cmp.Compare(b.DaysSinceVerification, a.DaysSinceVerification)
	})
	return stale, nil
}

// UsageReport summarizes documents by status, type and references.
func (r *Registry) UsageReport(ctx context.Context) (UsageReport, error) {
	docs, err := r.store.List(ctx)
	if err != nil {
		return UsageReport{}, err
	}

	report := UsageReport{
		TotalDocuments:   len(docs),
		ByType:           make(map[string]int),
		ByClassification: make(map[string]int),
		MostReferenced:   []ReferenceCount{},
		NeverReferenced:  []string{},
	}
	for _, d := range docs {
		switch d.Status {
		case StatusActive:
			report.ActiveDocuments++
			if d.TimesReferenced == 0 {
				report.NeverReferenced = append(report.NeverReferenced, d.DocumentID)
			}
		case StatusArchived:
			report.ArchivedDocuments++
		}
		report.ByType[d.DocumentType]++
		report.ByClassification[d.Classification]++
	}
	report.NeverReferencedCount = len(report.NeverReferenced)

	ranked := slices.Clone(docs)
	slices.SortStableFunc(ranked, func(a, b storage.DocumentRecord) int {
		return cmp.Compare(b.TimesReferenced, a.TimesReferenced)
	})
	for _, d := range ranked[:min(mostReferencedLimit, len(ranked))] {
		report.MostReferenced = append(report.MostReferenced, ReferenceCount{
			DocumentID:      d.DocumentID,
			TimesReferenced: d.TimesReferenced,
			DocumentType:    d.DocumentType,
		})
	}
	return report, nil
}

// SyncWithAuditLog recounts references from the whole audit log and
// overwrites the stored counts of every registered document that appears
// in it. Documents absent from the log keep their counts. It returns the
// number of documents updated.
func (r *Registry) SyncWithAuditLog(ctx context.Context, logs LogSource) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	entries, err := logs.GetLogs(ctx, audit.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	counts := make(map[string]int)
	for _, e := range entries {
		for _, source := range e.SourcesRetrieved {
			counts[source]++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}
	var changed []storage.DocumentRecord
	for _, d := range docs {
		if n, ok := counts[d.DocumentID]; ok {
			d.TimesReferenced = n
			changed = append(changed, d)
		}
	}
	if err := r.store.PutAll(ctx, changed); err != nil {
		return 0, fmt.Errorf("failed to store reference counts: %w", err)
	}

	logger.InfoContext(ctx, "registry synced with audit log", "entries", len(entries), "updated", len(changed))
	return len(changed), nil
}

// ImportCorpus registers every corpus document not yet known. Files
// register as compliance documents, titled articles as references.
// It returns the number of documents added.
func (r *Registry) ImportCorpus(ctx context.Context, docs []chunker.Document) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, d := range existing {
		known[d.DocumentID] = true
	}

	var added []storage.DocumentRecord
	for _, doc := range docs {
		var reg Registration
		switch {
		case doc.Filename != "":
			reg = Registration{
				DocumentID:   doc.Filename,
				SourceURL:    cmp.Or(doc.SourceURL, defaultPublicationURL),
				DocumentType: DefaultDocumentType,
			}
		case doc.Title != "":
			reg = Registration{
				DocumentID:   doc.Title,
				SourceURL:    doc.SourceURL,
				DocumentType: ReferenceDocumentType,
			}
		default:
			continue
		}
		if known[reg.DocumentID] {
			continue
		}
		known[reg.DocumentID] = true
		added = append(added, r.newRecord(reg))
	}

	if err := r.store.PutAll(ctx, added); err != nil {
		return 0, fmt.Errorf("failed to import documents: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "corpus imported into registry", "documents", len(docs), "added", len(added))
	return len(added), nil
}
