package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/punnu35/expense-app/model"
)

// MemoryStore is an in-memory ClaimStore for single-node deployments and
// tests. Versioning gives it the same conditional-update semantics as the
// Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[string]*model.Claim
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims: make(map[string]*model.Claim),
	}
}

func (s *MemoryStore) Insert(_ context.Context, claim *model.Claim) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := claim.Clone()
	stored.Version = 1
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	s.claims[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return claim.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch ClaimPatch, expectedVersion int64) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if claim.Version != expectedVersion {
		return nil, model.ErrStoreConflict
	}

	updated := claim.Clone()
	applyPatch(updated, patch)
	updated.Version = claim.Version + 1
	updated.UpdatedAt = time.Now()

	s.claims[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Query(_ context.Context, filter ClaimFilter) ([]*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Claim
	for _, c := range s.claims {
		if filter.Matches(c) {
			result = append(result, c.Clone())
		}
	}

	// Newest first, matching the listing order of the read path
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Count returns the number of claims in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.claims)
}

func applyPatch(c *model.Claim, patch ClaimPatch) {
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Vendor != nil {
		c.Vendor = *patch.Vendor
	}
	if patch.Amount != nil {
		c.Amount = *patch.Amount
	}
	if patch.OccurredOn != nil {
		c.OccurredOn = *patch.OccurredOn
	}
	if patch.Comments != nil {
		c.Comments = *patch.Comments
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.OCRState != nil {
		c.OCRState = *patch.OCRState
	}
	if patch.ExtractedData != nil {
		c.ExtractedData = patch.ExtractedData
	}
	if len(patch.AppendReceiptRefs) > 0 {
		c.ReceiptRefs = append(c.ReceiptRefs, patch.AppendReceiptRefs...)
	}
}
