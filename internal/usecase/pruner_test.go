package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"StockWatch/internal/domain/models"
)

func newEntry(job string, i int) *models.ExecutionRecord {
	return &models.ExecutionRecord{
		ID:        fmt.Sprintf("%s-%d", job, i),
		Job:       job,
		StartedAt: time.Now().Add(time.Duration(i) * time.Minute),
	}
}

func TestPrunerKeepsNewestEntries(t *testing.T) {
	h := &fakeHistory{}
	for i := 0; i < 10; i++ {
		_ = h.Record(context.Background(), newEntry("watch", i))
	}

	p := NewPruner(h, 1, testLogger(t))
	pruned, err := p.Prune(context.Background(), "watch")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 9 {
		t.Fatalf("expected 9 pruned, got %d", pruned)
	}

	entries, _ := h.List(context.Background(), "watch")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry left, got %d", len(entries))
	}
	// Record prepends, so the survivor is the last one recorded.
	if entries[0].ID != "watch-9" {
		t.Fatalf("wrong survivor: %s", entries[0].ID)
	}
}

func TestPrunerNoopWhenWithinLimit(t *testing.T) {
	h := &fakeHistory{}
	for i := 0; i < 3; i++ {
		_ = h.Record(context.Background(), newEntry("watch", i))
	}

	p := NewPruner(h, 5, testLogger(t))
	pruned, err := p.Prune(context.Background(), "watch")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("expected no pruning, got %d", pruned)
	}
	if len(h.deleted) != 0 {
		t.Fatalf("no deletes expected, got %v", h.deleted)
	}
}

func TestPrunerContinuesPastDeleteFailure(t *testing.T) {
	h := &fakeHistory{failIDs: map[string]bool{"watch-5": true}}
	for i := 0; i < 10; i++ {
		_ = h.Record(context.Background(), newEntry("watch", i))
	}

	p := NewPruner(h, 1, testLogger(t))
	pruned, err := p.Prune(context.Background(), "watch")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// One delete is rejected; the other eight old entries still go.
	if pruned != 8 {
		t.Fatalf("expected 8 pruned, got %d", pruned)
	}

	entries, _ := h.List(context.Background(), "watch")
	if len(entries) != 2 {
		t.Fatalf("expected survivor plus failed entry, got %d", len(entries))
	}
	if entries[0].ID != "watch-9" {
		t.Fatalf("newest entry must survive, got %s", entries[0].ID)
	}
}

func TestPrunerNoopOnEmptyHistory(t *testing.T) {
	h := &fakeHistory{}
	p := NewPruner(h, 5, testLogger(t))
	pruned, err := p.Prune(context.Background(), "watch")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("expected 0, got %d", pruned)
	}
}
