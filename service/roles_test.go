package service

import (
	"testing"

	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/model"
)

func newTestResolver() *RoleResolver {
	return NewRoleResolver(&config.RolesConfig{
		AdminEmail:    "admin@camp.org",
		ApproverEmail: "approver@camp.org",
	})
}

func TestResolveRole(t *testing.T) {
	resolver := newTestResolver()

	tests := []struct {
		email string
		want  model.Role
	}{
		{"admin@camp.org", model.RoleAdmin},
		{"approver@camp.org", model.RoleApprover},
		{"sam@camp.org", model.RoleSubmitter},
		{"Admin@camp.org", model.RoleSubmitter}, // exact match, no case folding
		{"", model.RoleSubmitter},
	}

	for _, tt := range tests {
		if got := resolver.Resolve(tt.email); got != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.email, got, tt.want)
		}
	}
}

func TestResolveRoleEmptyConfig(t *testing.T) {
	// An empty roles config must not promote anyone, including actors with
	// an empty email
	resolver := NewRoleResolver(&config.RolesConfig{})
	if got := resolver.Resolve(""); got != model.RoleSubmitter {
		t.Errorf("Expected submitter for empty email, got %s", got)
	}
}

func TestVisibilityFilter(t *testing.T) {
	resolver := newTestResolver()

	admin := resolver.VisibilityFilter(model.Identity{UserID: "a1", Email: "admin@camp.org"})
	if admin.OwnerID != "" || len(admin.Statuses) != 0 {
		t.Errorf("Expected unrestricted filter for admin, got %+v", admin)
	}

	approver := resolver.VisibilityFilter(model.Identity{UserID: "ap1", Email: "approver@camp.org"})
	if !approver.MatchAny {
		t.Error("Expected approver filter to match own claims or review statuses")
	}
	if approver.OwnerID != "ap1" {
		t.Errorf("Expected approver filter scoped to own id, got '%s'", approver.OwnerID)
	}

	submitter := resolver.VisibilityFilter(model.Identity{UserID: "u1", Email: "sam@camp.org"})
	if submitter.OwnerID != "u1" || submitter.MatchAny {
		t.Errorf("Expected submitter filter scoped to owner only, got %+v", submitter)
	}
}

func TestVisibilityFilterMatches(t *testing.T) {
	resolver := newTestResolver()
	approver := resolver.VisibilityFilter(model.Identity{UserID: "ap1", Email: "approver@camp.org"})

	// Approvers see others' claims only while pending or approved
	if !approver.Matches(&model.Claim{OwnerID: "u1", Status: model.StatusPending}) {
		t.Error("Expected approver to see others' pending claims")
	}
	if !approver.Matches(&model.Claim{OwnerID: "u1", Status: model.StatusApproved}) {
		t.Error("Expected approver to see others' approved claims")
	}
	if approver.Matches(&model.Claim{OwnerID: "u1", Status: model.StatusRejected}) {
		t.Error("Expected approver to not see others' rejected claims")
	}
	if approver.Matches(&model.Claim{OwnerID: "u1", Status: model.StatusPaid}) {
		t.Error("Expected approver to not see others' paid claims")
	}
	if !approver.Matches(&model.Claim{OwnerID: "ap1", Status: model.StatusPaid}) {
		t.Error("Expected approver to see own claims in any status")
	}
}
