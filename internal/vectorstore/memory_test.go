package vectorstore

import (
	"context"
	"math"
	"testing"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	if err := s.EnsureCollection(context.Background(), "docs", 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	return s
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)

	points := []Point{
		{ID: "east", Vec: []float32{1, 0}, Meta: map[string]any{"source_file": "east.pdf"}},
		{ID: "north", Vec: []float32{0, 1}},
		{ID: "northeast", Vec: []float32{1, 1}},
		{ID: "west", Vec: []float32{-1, 0}},
	}
	if err := s.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := s.Search(ctx, "docs", []float32{2, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	wantIDs := []string{"east", "northeast", "north"}
	if len(results) != len(wantIDs) {
		t.Fatalf("Search() returned %d results, want %d", len(results), len(wantIDs))
	}
	for i, want := range wantIDs {
		if results[i].PointID != want {
			t.Errorf("result %d = %s, want %s", i, results[i].PointID, want)
		}
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance = %v, want 0", results[0].Distance)
	}
	if got := results[1].Distance; math.Abs(float64(got)-(1-1/math.Sqrt2)) > 1e-6 {
		t.Errorf("45 degree distance = %v", got)
	}
	if results[0].Meta["source_file"] != "east.pdf" {
		t.Errorf("metadata not returned: %v", results[0].Meta)
	}
}

func TestMemoryStore_SearchTiesOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)
	_ = s.Upsert(ctx, "docs", []Point{
		{ID: "b", Vec: []float32{1, 0}},
		{ID: "a", Vec: []float32{2, 0}},
	})

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].PointID != "a" || results[1].PointID != "b" {
		t.Errorf("tie order = %s, %s", results[0].PointID, results[1].PointID)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"missing collection", func() error { _, err := s.Count(ctx, "nope"); return err }},
		{"wrong point size", func() error {
			return s.Upsert(ctx, "docs", []Point{{ID: "x", Vec: []float32{1, 2, 3}}})
		}},
		{"wrong query size", func() error { _, err := s.Search(ctx, "docs", []float32{1}, 1); return err }},
		{"non-positive k", func() error { _, err := s.Search(ctx, "docs", []float32{1, 0}, 0); return err }},
		{"size mismatch on ensure", func() error { return s.EnsureCollection(ctx, "docs", 3) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMemoryStore_ExistingCountRecreate(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)
	_ = s.Upsert(ctx, "docs", []Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{0, 1}},
	})
	// Upsert of an existing id replaces it.
	_ = s.Upsert(ctx, "docs", []Point{{ID: "a", Vec: []float32{0, 1}}})

	existing, err := s.Existing(ctx, "docs", []string{"a", "c", "b"})
	if err != nil {
		t.Fatalf("Existing() error = %v", err)
	}
	if len(existing) != 2 || existing[0] != "a" || existing[1] != "b" {
		t.Errorf("Existing() = %v, want [a b]", existing)
	}
	if n, _ := s.Count(ctx, "docs"); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	if err := s.Recreate(ctx, "docs", 4); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	if n, _ := s.Count(ctx, "docs"); n != 0 {
		t.Errorf("Count() after Recreate = %d, want 0", n)
	}
	if ok, _ := s.CollectionExists(ctx, "docs"); !ok {
		t.Error("collection missing after Recreate")
	}
	if err := s.EnsureCollection(ctx, "docs", 4); err != nil {
		t.Errorf("EnsureCollection() after Recreate error = %v", err)
	}
}
