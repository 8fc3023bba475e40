package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/model"
	"github.com/punnu35/expense-app/pkg/logger"
)

// LifecycleService owns the claim approval workflow: creation, edits, the
// status state machine and the per-transition authorization checks. Every
// mutation re-reads the row and writes conditionally on the version it saw,
// so concurrent writers cannot interleave.
type LifecycleService struct {
	store  ClaimStore
	roles  *RoleResolver
	policy *config.PolicyConfig
}

func NewLifecycleService(store ClaimStore, roles *RoleResolver, policy *config.PolicyConfig) *LifecycleService {
	return &LifecycleService{
		store:  store,
		roles:  roles,
		policy: policy,
	}
}

type CreateClaimInput struct {
	// ID is optional; callers that pre-upload receipts under a claim-scoped
	// object prefix supply the id they used. Blank means the engine assigns
	// one.
	ID          string
	Title       string
	Description string
	Vendor      string
	Amount      float64
	OccurredOn  string
	ReceiptRefs []string
}

// EditClaimInput carries the editable claim fields. Nil means unchanged.
// Extracted data, ownership, receipts and timestamps are not editable.
type EditClaimInput struct {
	Title       *string
	Description *string
	Vendor      *string
	Amount      *float64
	OccurredOn  *string
	Comments    *string
}

// CreateClaim validates input and inserts a new pending claim owned by the
// actor.
func (s *LifecycleService) CreateClaim(ctx context.Context, actor model.Identity, input CreateClaimInput) (*model.Claim, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, &model.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !(input.Amount >= 0) {
		return nil, &model.ValidationError{Field: "amount", Reason: "must be a non-negative number"}
	}
	if s.policy.ReceiptRequired() && len(input.ReceiptRefs) == 0 {
		return nil, &model.ValidationError{Field: "receipts", Reason: "at least one receipt is required"}
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	claim := &model.Claim{
		ID:          id,
		OwnerID:     actor.UserID,
		OwnerEmail:  actor.Email,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Vendor:      input.Vendor,
		Amount:      input.Amount,
		OccurredOn:  input.OccurredOn,
		ReceiptRefs: append([]string(nil), input.ReceiptRefs...),
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.store.Insert(ctx, claim)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "claim created",
		"claim_id", created.ID,
		"owner", created.OwnerEmail,
		"amount", created.Amount,
		"receipts", len(created.ReceiptRefs),
	)
	return created, nil
}

// EditClaim updates editable fields. The owner may edit while the claim is
// pending or rejected; an admin may edit any non-terminal claim. Editing a
// rejected claim resubmits it: the status flips back to pending as part of
// the same write. Extracted data is never touched by an edit.
func (s *LifecycleService) EditClaim(ctx context.Context, actor model.Identity, id string, input EditClaimInput) (*model.Claim, error) {
	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkEditAllowed(actor, claim, "edit"); err != nil {
		return nil, err
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, &model.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if input.Amount != nil && !(*input.Amount >= 0) {
		return nil, &model.ValidationError{Field: "amount", Reason: "must be a non-negative number"}
	}

	patch := ClaimPatch{
		Title:       input.Title,
		Description: input.Description,
		Vendor:      input.Vendor,
		Amount:      input.Amount,
		OccurredOn:  input.OccurredOn,
		Comments:    input.Comments,
	}

	// Resubmission: saving an edit on a rejected claim puts it back in the
	// review queue
	if claim.Status == model.StatusRejected {
		pending := model.StatusPending
		patch.Status = &pending
	}

	updated, err := s.store.Update(ctx, id, patch, claim.Version)
	if err != nil {
		return nil, err
	}

	if claim.Status == model.StatusRejected {
		logger.Info(ctx, "claim resubmitted", "claim_id", id, "owner", claim.OwnerEmail)
	}
	return updated, nil
}

// AddReceipts appends uploaded receipt references to a claim, preserving
// existing entries and the order of the new ones. Permissions mirror
// EditClaim; the status is left untouched.
func (s *LifecycleService) AddReceipts(ctx context.Context, actor model.Identity, id string, refs []string) (*model.Claim, error) {
	if len(refs) == 0 {
		return nil, &model.ValidationError{Field: "receipts", Reason: "must not be empty"}
	}

	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkEditAllowed(actor, claim, "add receipts to"); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, id, ClaimPatch{AppendReceiptRefs: refs}, claim.Version)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receipts added", "claim_id", id, "count", len(refs))
	return updated, nil
}

// Approve moves a pending claim to approved. Approver or admin only; any
// other status fails so an already-resolved claim cannot be approved twice.
func (s *LifecycleService) Approve(ctx context.Context, actor model.Identity, id, comments string) (*model.Claim, error) {
	return s.resolve(ctx, actor, id, model.StatusApproved, "approve", comments)
}

// Reject moves a pending claim to rejected. Approver or admin only.
func (s *LifecycleService) Reject(ctx context.Context, actor model.Identity, id, comments string) (*model.Claim, error) {
	return s.resolve(ctx, actor, id, model.StatusRejected, "reject", comments)
}

func (s *LifecycleService) resolve(ctx context.Context, actor model.Identity, id string, next model.Status, action, comments string) (*model.Claim, error) {
	role := s.roles.Resolve(actor.Email)
	if role != model.RoleApprover && role != model.RoleAdmin {
		return nil, model.Forbidden("only an approver or admin may %s claims", action)
	}

	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.Status != model.StatusPending || !claim.Status.CanTransitionTo(next) {
		return nil, &model.InvalidTransitionError{Current: claim.Status, Action: action}
	}

	patch := ClaimPatch{Status: &next}
	if comments != "" {
		patch.Comments = &comments
	}

	updated, err := s.store.Update(ctx, id, patch, claim.Version)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "claim resolved",
		"claim_id", id,
		"status", string(next),
		"resolved_by", actor.Email,
	)
	return updated, nil
}

// MarkPaid moves an approved claim to paid. Admin only; paying from any
// other status, including paid itself, fails.
func (s *LifecycleService) MarkPaid(ctx context.Context, actor model.Identity, id string) (*model.Claim, error) {
	if s.roles.Resolve(actor.Email) != model.RoleAdmin {
		return nil, model.Forbidden("only an admin may mark claims paid")
	}

	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claim.Status.CanTransitionTo(model.StatusPaid) {
		return nil, &model.InvalidTransitionError{Current: claim.Status, Action: "pay"}
	}

	paid := model.StatusPaid
	updated, err := s.store.Update(ctx, id, ClaimPatch{Status: &paid}, claim.Version)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "claim paid", "claim_id", id, "paid_by", actor.Email)
	return updated, nil
}

// Close archives a claim outside the normal approval flow. Admin only;
// closed is terminal.
func (s *LifecycleService) Close(ctx context.Context, actor model.Identity, id string) (*model.Claim, error) {
	if s.roles.Resolve(actor.Email) != model.RoleAdmin {
		return nil, model.Forbidden("only an admin may close claims")
	}

	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.Status.Terminal() {
		return nil, &model.InvalidTransitionError{Current: claim.Status, Action: "close"}
	}

	closed := model.StatusClosed
	updated, err := s.store.Update(ctx, id, ClaimPatch{Status: &closed}, claim.Version)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "claim closed", "claim_id", id, "closed_by", actor.Email)
	return updated, nil
}

// GetClaim returns a single claim if it is within the actor's visibility.
// Out-of-scope claims report not-found rather than forbidden, so a valid id
// reveals nothing to an actor who cannot see it.
func (s *LifecycleService) GetClaim(ctx context.Context, actor model.Identity, id string) (*model.Claim, error) {
	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.roles.VisibilityFilter(actor).Matches(claim) {
		return nil, model.ErrNotFound
	}
	return claim, nil
}

// ListClaims returns the claims visible to the actor, newest first. The
// role scope is part of the store query, not a post-hoc filter.
func (s *LifecycleService) ListClaims(ctx context.Context, actor model.Identity) ([]*model.Claim, error) {
	return s.store.Query(ctx, s.roles.VisibilityFilter(actor))
}

// checkEditAllowed enforces the edit permission matrix: owner while pending
// or rejected, admin while non-terminal.
func (s *LifecycleService) checkEditAllowed(actor model.Identity, claim *model.Claim, action string) error {
	isOwner := claim.OwnerID == actor.UserID
	isAdmin := s.roles.Resolve(actor.Email) == model.RoleAdmin

	if !isOwner && !isAdmin {
		return model.Forbidden("only the claim owner or an admin may %s a claim", action)
	}
	if isAdmin {
		if claim.Status.Terminal() {
			return &model.InvalidTransitionError{Current: claim.Status, Action: action}
		}
		return nil
	}
	if claim.Status != model.StatusPending && claim.Status != model.StatusRejected {
		return &model.InvalidTransitionError{Current: claim.Status, Action: action}
	}
	return nil
}
