package storage

import (
	"slices"
	"time"
)

// DocumentRecord is the persisted registry entry of one source document.
type DocumentRecord struct {
	DocumentID      string     `json:"document_id"`
	SourceURL       string     `json:"source_url"`
	DocumentType    string     `json:"document_type"`
	Classification  string     `json:"classification"`
	AddedDate       time.Time  `json:"added_date"`
	Version         string     `json:"version"`
	LastVerified    time.Time  `json:"last_verified"`
	LastUpdated     time.Time  `json:"last_updated"`
	TimesReferenced int        `json:"times_referenced"`
	Status          string     `json:"status"`
	RetentionYears  int        `json:"retention_years"`
	Tags            []string   `json:"tags"`
	ArchivedDate    *time.Time `json:"archived_date,omitempty"`
}

// Key returns the document id.
func (r DocumentRecord) Key() string { return r.DocumentID }

// Clone returns a deep copy.
func (r DocumentRecord) Clone() DocumentRecord {
	r.Tags = slices.Clone(r.Tags)
	r.ArchivedDate = cloneTime(r.ArchivedDate)
	return r
}

// UserRecord is the persisted profile of one user.
type UserRecord struct {
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Department      string     `json:"department"`
	Permissions     []string   `json:"permissions"`
	AccessLevel     string     `json:"access_level"`
	CreatedDate     time.Time  `json:"created_date"`
	LastActive      *time.Time `json:"last_active"`
	QueryCount      int        `json:"query_count"`
	Status          string     `json:"status"`
	DeactivatedDate *time.Time `json:"deactivated_date,omitempty"`
}

// Key returns the user id.
func (r UserRecord) Key() string { return r.UserID }

// Clone returns a deep copy.
func (r UserRecord) Clone() UserRecord {
	r.Permissions = slices.Clone(r.Permissions)
	r.LastActive = cloneTime(r.LastActive)
	r.DeactivatedDate = cloneTime(r.DeactivatedDate)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
