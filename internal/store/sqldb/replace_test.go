package sqldb

import (
	"context"
	"testing"

	"github.com/zotairo/zotairo-server/internal/domain"
)

func sampleSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Collections: []domain.Collection{
			{Scope: userScope, ID: "A", Name: "Thesis"},
			{Scope: userScope, ID: "B", Name: "Chapter 1", ParentID: "A"},
			{Scope: groupScope, ID: "G", Name: "Lab"},
		},
		Items: []domain.Item{
			{Scope: userScope, ID: "X", Title: "Paper X"},
			{Scope: userScope, ID: "Y", Title: "Paper Y"},
			{Scope: groupScope, ID: "X", Title: "Group copy of X"},
		},
		Memberships: []domain.Membership{
			{Scope: userScope, ItemID: "X", CollectionID: "A"},
			{Scope: userScope, ItemID: "X", CollectionID: "A"},
			{Scope: userScope, ItemID: "Y", CollectionID: "B"},
			{Scope: groupScope, ItemID: "X", CollectionID: "G"},
		},
	}
}

func TestReplaceAll_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for run := range 2 {
		if err := s.ReplaceAll(ctx, sampleSnapshot()); err != nil {
			t.Fatalf("run %d: ReplaceAll: %v", run, err)
		}
		counts, err := s.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		want := domain.Counts{Collections: 3, Items: 3, Memberships: 3}
		if counts != want {
			t.Errorf("run %d: counts = %+v, want %+v", run, counts, want)
		}
	}
}

func TestReplaceAll_RemovesRowsMissingUpstream(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceAll(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	next := sampleSnapshot()
	next.Items = next.Items[1:] // user item X deleted upstream
	next.Memberships = next.Memberships[2:]
	if err := s.ReplaceAll(ctx, next); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	items, err := s.ListAllItems(ctx, userScope)
	if err != nil {
		t.Fatalf("ListAllItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != "Y" {
		t.Errorf("user items = %+v, want only Y", items)
	}
	inA, _ := s.ListItems(ctx, userScope, "A")
	if len(inA) != 0 {
		t.Errorf("collection A still has %d items", len(inA))
	}
}

func TestReplaceAll_CanceledContextKeepsPreviousContents(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceAll(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.ReplaceAll(ctx, &domain.Snapshot{}); err == nil {
		t.Fatal("expected error with canceled context")
	}

	counts, err := s.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Items != 3 {
		t.Errorf("items after failed replace = %d, want 3", counts.Items)
	}
}
