package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"compliance-rag/internal/apperr"
)

func openTestDB(t *testing.T) *DocumentRepo {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "governance.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewDocumentRepo(db)
}

func documentStores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	jsonStore, err := NewJSONDocumentStore(filepath.Join(t.TempDir(), "governance", "document_registry.json"))
	if err != nil {
		t.Fatalf("NewJSONDocumentStore() error = %v", err)
	}
	return map[string]DocumentStore{
		"sqlite": openTestDB(t),
		"json":   jsonStore,
		"memory": NewMemoryDocumentStore(),
	}
}

func userStores(t *testing.T) map[string]UserStore {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "governance.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	jsonStore, err := NewJSONUserStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("NewJSONUserStore() error = %v", err)
	}
	return map[string]UserStore{
		"sqlite": NewUserRepo(db),
		"json":   jsonStore,
		"memory": NewMemoryUserStore(),
	}
}

func testDocument(id string, refs int) DocumentRecord {
	added := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	return DocumentRecord{
		DocumentID:      id,
		SourceURL:       "https://www.osha.gov/" + id,
		DocumentType:    "compliance",
		Classification:  "public",
		AddedDate:       added,
		Version:         "1.0",
		LastVerified:    added,
		LastUpdated:     added,
		TimesReferenced: refs,
		Status:          "active",
		RetentionYears:  7,
		Tags:            []string{"osha"},
	}
}

func TestDocumentStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "missing.pdf"); !errors.Is(err, ErrNotFound) || !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if recs, err := store.List(ctx); err != nil || len(recs) != 0 {
				t.Errorf("List() on empty store = %v, %v", recs, err)
			}

			doc := testDocument("osha_bloodborne.pdf", 3)
			if err := store.Put(ctx, &doc); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, err := store.Get(ctx, "osha_bloodborne.pdf")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.TimesReferenced != 3 || got.SourceURL != doc.SourceURL || !got.AddedDate.Equal(doc.AddedDate) {
				t.Errorf("Get() = %+v", got)
			}
			if len(got.Tags) != 1 || got.Tags[0] != "osha" || got.ArchivedDate != nil {
				t.Errorf("Get() tags/archived = %v/%v", got.Tags, got.ArchivedDate)
			}

			// Mutating a returned record does not change the store.
			got.Tags[0] = "changed"
			again, _ := store.Get(ctx, "osha_bloodborne.pdf")
			if again.Tags[0] != "osha" {
				t.Error("store shares tag slice with caller")
			}

			archived := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
			doc.Status = "archived"
			doc.ArchivedDate = &archived
			batch := []DocumentRecord{doc, testDocument("cdc_hand_hygiene.pdf", 0), testDocument("hipaa.pdf", 9)}
			if err := store.PutAll(ctx, batch); err != nil {
				t.Fatalf("PutAll() error = %v", err)
			}

			recs, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			wantIDs := []string{"cdc_hand_hygiene.pdf", "hipaa.pdf", "osha_bloodborne.pdf"}
			if len(recs) != len(wantIDs) {
				t.Fatalf("List() returned %d records", len(recs))
			}
			for i, id := range wantIDs {
				if recs[i].DocumentID != id {
					t.Errorf("List()[%d] = %s, want %s", i, recs[i].DocumentID, id)
				}
			}
			if recs[2].Status != "archived" || recs[2].ArchivedDate == nil || !recs[2].ArchivedDate.Equal(archived) {
				t.Errorf("archived record = %+v", recs[2])
			}
		})
	}
}

func TestUserStores(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			user := UserRecord{
				UserID:      "EMP0001",
				Name:        "Test Nurse",
				Email:       "emp0001@healthcare.example.com",
				Role:        "employee",
				Department:  "Nursing",
				Permissions: []string{"can_query_rag", "can_view_own_analytics"},
				AccessLevel: "standard",
				CreatedDate: created,
				Status:      "active",
			}
			if err := store.Put(ctx, &user); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := store.Get(ctx, "EMP0001")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.LastActive != nil || got.QueryCount != 0 || len(got.Permissions) != 2 {
				t.Errorf("Get() = %+v", got)
			}

			active := created.Add(48 * time.Hour)
			got.LastActive = &active
			got.QueryCount = 4
			if err := store.PutAll(ctx, []UserRecord{*got}); err != nil {
				t.Fatalf("PutAll() error = %v", err)
			}
			updated, _ := store.Get(ctx, "EMP0001")
			if updated.QueryCount != 4 || updated.LastActive == nil || !updated.LastActive.Equal(active) {
				t.Errorf("updated user = %+v", updated)
			}

			if _, err := store.Get(ctx, "EMP9999"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v", err)
			}
		})
	}
}

func TestJSONStore_FileFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "document_registry.json")
	store, _ := NewJSONDocumentStore(path)

	doc := testDocument("hipaa.pdf", 1)
	_ = store.Put(ctx, &doc)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	// Whole-file object keyed by id, with no temp files left behind.
	if raw[0] != '{' || !strings.Contains(string(raw), `"hipaa.pdf": {`) {
		t.Errorf("file content = %s", raw)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}

	// A second store over the same file reads it back.
	reopened, _ := NewJSONDocumentStore(path)
	if _, err := reopened.Get(ctx, "hipaa.pdf"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}

	_ = os.WriteFile(path, []byte("{broken"), 0o644)
	if _, err := reopened.List(ctx); err == nil {
		t.Error("List() error = nil for corrupt file")
	}
}
