package service

import (
	"context"

	"github.com/punnu35/expense-app/model"
)

// ClaimPatch describes a partial update to a claim row. Nil fields are left
// untouched; AppendReceiptRefs adds to the existing receipt list without
// replacing it.
type ClaimPatch struct {
	Title       *string
	Description *string
	Vendor      *string
	Amount      *float64
	OccurredOn  *string
	Comments    *string
	Status      *model.Status
	OCRState    *model.OCRState
	// ExtractedData always replaces the whole record, never merges.
	ExtractedData     *model.ExtractedData
	AppendReceiptRefs []string
}

// ClaimFilter scopes a query. The zero value matches everything.
type ClaimFilter struct {
	OwnerID  string
	Statuses []model.Status
	// MatchAny widens the filter to OwnerID OR Statuses, which is what an
	// approver's review queue needs: everyone's pending/approved claims
	// plus the approver's own claims in any status.
	MatchAny bool
}

// ClaimStore is the row store the lifecycle engine reads and writes claims
// through. Update is conditional on the version observed by the preceding
// read, so two concurrent writers to the same claim cannot both succeed.
type ClaimStore interface {
	Insert(ctx context.Context, claim *model.Claim) (*model.Claim, error)
	Get(ctx context.Context, id string) (*model.Claim, error)
	Update(ctx context.Context, id string, patch ClaimPatch, expectedVersion int64) (*model.Claim, error)
	Query(ctx context.Context, filter ClaimFilter) ([]*model.Claim, error)
}

func (f ClaimFilter) matchesStatus(s model.Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Matches reports whether a claim is in the filter's scope.
func (f ClaimFilter) Matches(c *model.Claim) bool {
	if f.MatchAny {
		if f.OwnerID != "" && c.OwnerID == f.OwnerID {
			return true
		}
		return len(f.Statuses) > 0 && f.matchesStatus(c.Status)
	}
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	return f.matchesStatus(c.Status)
}
