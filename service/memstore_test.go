package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/punnu35/expense-app/model"
)

func newStoredClaim(t *testing.T, store *MemoryStore, claim *model.Claim) *model.Claim {
	t.Helper()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}
	stored, err := store.Insert(context.Background(), claim)
	if err != nil {
		t.Fatalf("Failed to insert claim: %v", err)
	}
	return stored
}

func TestMemoryStoreInsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stored := newStoredClaim(t, store, &model.Claim{
		ID:          "claim-1",
		OwnerID:     "u1",
		Title:       "Camp Supplies",
		Amount:      42.50,
		ReceiptRefs: []string{"r1"},
		Status:      model.StatusPending,
	})

	if stored.Version != 1 {
		t.Errorf("Expected version 1 on insert, got %d", stored.Version)
	}

	got, err := store.Get(ctx, "claim-1")
	if err != nil {
		t.Fatalf("Failed to get claim: %v", err)
	}
	if got.Title != "Camp Supplies" {
		t.Errorf("Expected title 'Camp Supplies', got '%s'", got.Title)
	}

	_, err = store.Get(ctx, "non-existent")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	newStoredClaim(t, store, &model.Claim{
		ID:          "claim-1",
		ReceiptRefs: []string{"r1"},
		Title:       "original",
		Status:      model.StatusPending,
	})

	got, _ := store.Get(ctx, "claim-1")
	got.Title = "mutated"
	got.ReceiptRefs[0] = "mutated"

	again, _ := store.Get(ctx, "claim-1")
	if again.Title != "original" || again.ReceiptRefs[0] != "r1" {
		t.Error("Expected store contents to be isolated from returned snapshots")
	}
}

func TestMemoryStoreUpdateVersionCheck(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stored := newStoredClaim(t, store, &model.Claim{
		ID:     "claim-1",
		Title:  "before",
		Status: model.StatusPending,
	})

	title := "after"
	updated, err := store.Update(ctx, "claim-1", ClaimPatch{Title: &title}, stored.Version)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if updated.Title != "after" {
		t.Errorf("Expected title 'after', got '%s'", updated.Title)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2, got %d", updated.Version)
	}

	// A second writer holding the stale version must fail, not overwrite
	stale := "stale write"
	_, err = store.Update(ctx, "claim-1", ClaimPatch{Title: &stale}, stored.Version)
	if !errors.Is(err, model.ErrStoreConflict) {
		t.Errorf("Expected ErrStoreConflict for stale version, got %v", err)
	}

	got, _ := store.Get(ctx, "claim-1")
	if got.Title != "after" {
		t.Errorf("Expected stale write to be discarded, got title '%s'", got.Title)
	}

	_, err = store.Update(ctx, "non-existent", ClaimPatch{Title: &title}, 1)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreAppendReceiptRefs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stored := newStoredClaim(t, store, &model.Claim{
		ID:          "claim-1",
		ReceiptRefs: []string{"a"},
		Status:      model.StatusPending,
	})

	updated, err := store.Update(ctx, "claim-1", ClaimPatch{AppendReceiptRefs: []string{"b", "c"}}, stored.Version)
	if err != nil {
		t.Fatalf("Failed to append receipts: %v", err)
	}

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(updated.ReceiptRefs, want) {
		t.Errorf("Expected receipt refs %v, got %v", want, updated.ReceiptRefs)
	}
}

func TestMemoryStoreExtractedDataReplaced(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	amount := 12.34
	stored := newStoredClaim(t, store, &model.Claim{
		ID:     "claim-1",
		Status: model.StatusPending,
		ExtractedData: &model.ExtractedData{
			Merchant: "Old Shop",
			Amount:   &amount,
			Date:     "01/01/2024",
			RawText:  "old",
		},
	})

	// A new extraction with fewer fields must fully replace the old record,
	// not merge into it
	parsed := model.OCRStateParsed
	updated, err := store.Update(ctx, "claim-1", ClaimPatch{
		ExtractedData: &model.ExtractedData{RawText: "new"},
		OCRState:      &parsed,
	}, stored.Version)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}

	if updated.ExtractedData.Merchant != "" || updated.ExtractedData.Amount != nil || updated.ExtractedData.Date != "" {
		t.Errorf("Expected extracted data fully replaced, got %+v", updated.ExtractedData)
	}
	if updated.ExtractedData.RawText != "new" {
		t.Errorf("Expected raw text 'new', got '%s'", updated.ExtractedData.RawText)
	}
	if updated.OCRState != model.OCRStateParsed {
		t.Errorf("Expected OCR state parsed, got '%s'", updated.OCRState)
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	newStoredClaim(t, store, &model.Claim{ID: "1", OwnerID: "u1", Status: model.StatusPending, CreatedAt: base})
	newStoredClaim(t, store, &model.Claim{ID: "2", OwnerID: "u1", Status: model.StatusRejected, CreatedAt: base.Add(time.Second)})
	newStoredClaim(t, store, &model.Claim{ID: "3", OwnerID: "u2", Status: model.StatusApproved, CreatedAt: base.Add(2 * time.Second)})
	newStoredClaim(t, store, &model.Claim{ID: "4", OwnerID: "u2", Status: model.StatusPaid, CreatedAt: base.Add(3 * time.Second)})

	tests := []struct {
		name   string
		filter ClaimFilter
		want   []string
	}{
		{
			name:   "everything, newest first",
			filter: ClaimFilter{},
			want:   []string{"4", "3", "2", "1"},
		},
		{
			name:   "by owner",
			filter: ClaimFilter{OwnerID: "u1"},
			want:   []string{"2", "1"},
		},
		{
			name:   "by status",
			filter: ClaimFilter{Statuses: []model.Status{model.StatusPending, model.StatusApproved}},
			want:   []string{"3", "1"},
		},
		{
			name: "owner or status (review queue)",
			filter: ClaimFilter{
				OwnerID:  "u1",
				Statuses: []model.Status{model.StatusPending, model.StatusApproved},
				MatchAny: true,
			},
			want: []string{"3", "2", "1"},
		},
		{
			name:   "owner and status",
			filter: ClaimFilter{OwnerID: "u2", Statuses: []model.Status{model.StatusPaid}},
			want:   []string{"4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			var ids []string
			for _, c := range claims {
				ids = append(ids, c.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Expected ids %v, got %v", tt.want, ids)
			}
		})
	}
}

func TestMemoryStoreCount(t *testing.T) {
	store := NewMemoryStore()

	if store.Count() != 0 {
		t.Error("Expected 0 claims initially")
	}

	newStoredClaim(t, store, &model.Claim{ID: "1", Status: model.StatusPending})
	newStoredClaim(t, store, &model.Claim{ID: "2", Status: model.StatusPending})

	if store.Count() != 2 {
		t.Errorf("Expected 2 claims, got %d", store.Count())
	}
}
