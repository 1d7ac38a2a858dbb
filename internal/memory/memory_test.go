package memory

import (
	"context"
	"math"
	"testing"
)

type stubStore struct {
	records []Record
}

func (s *stubStore) AppendMemory(ctx context.Context, record Record) error {
	s.records = append(s.records, record)
	return nil
}

func (s *stubStore) RecentMemories(ctx context.Context, limit int) ([]Record, error) {
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors should score 1, got %f", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors should score 0, got %f", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("mismatched dimensions should score 0, got %f", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("empty vectors should score 0, got %f", got)
	}
}

func TestRelevantRanksByCosine(t *testing.T) {
	store := &stubStore{records: []Record{
		{ID: "far", Embedding: []float32{0, 1}},
		{ID: "near", Embedding: []float32{1, 0.1}},
		{ID: "exact", Embedding: []float32{1, 0}},
	}}
	engine := NewEngine(nil, nil, store)

	results, err := engine.Relevant(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "exact" || results[1].ID != "near" {
		t.Fatalf("unexpected ranking: %s, %s", results[0].ID, results[1].ID)
	}
}

func TestRememberAssignsIdentity(t *testing.T) {
	store := &stubStore{}
	engine := NewEngine(nil, nil, store)

	if err := engine.Remember(context.Background(), "a memory", []float32{0.1}, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
	record := store.records[0]
	if record.ID == "" {
		t.Fatal("record must carry an id")
	}
	if record.CreatedAt.IsZero() {
		t.Fatal("record must carry a timestamp")
	}
	if record.Significance != 8 {
		t.Fatalf("unexpected significance %f", record.Significance)
	}
}
