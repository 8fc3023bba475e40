package service

import (
	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/model"
)

// RoleResolver maps actor emails to roles using the configured admin and
// approver addresses. Resolution happens on every request; nothing is
// cached, so a config change takes effect immediately.
type RoleResolver struct {
	roles *config.RolesConfig
}

func NewRoleResolver(roles *config.RolesConfig) *RoleResolver {
	return &RoleResolver{roles: roles}
}

// Resolve returns the role for an email by exact match. Anyone not
// configured is a submitter.
func (r *RoleResolver) Resolve(email string) model.Role {
	if email == "" {
		return model.RoleSubmitter
	}
	switch email {
	case r.roles.AdminEmail:
		return model.RoleAdmin
	case r.roles.ApproverEmail:
		return model.RoleApprover
	}
	return model.RoleSubmitter
}

// VisibilityFilter returns the query scope for an actor's read path. The
// scoping happens in the store query itself, so out-of-scope claims never
// reach the caller, not even as counts.
func (r *RoleResolver) VisibilityFilter(actor model.Identity) ClaimFilter {
	switch r.Resolve(actor.Email) {
	case model.RoleAdmin:
		return ClaimFilter{}
	case model.RoleApprover:
		// Review queue: everyone's pending and approved claims, plus the
		// approver's own claims in any status
		return ClaimFilter{
			OwnerID:  actor.UserID,
			Statuses: []model.Status{model.StatusPending, model.StatusApproved},
			MatchAny: true,
		}
	default:
		return ClaimFilter{OwnerID: actor.UserID}
	}
}
