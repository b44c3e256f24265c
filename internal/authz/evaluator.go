package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MembershipResolver answers whether a user holds an active membership on
// a project. Backed by the projects module; the evaluator only consumes
// the boolean.
type MembershipResolver interface {
	IsActiveMember(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error)
}

// Evaluator is the single authoritative decision point. It is stateless
// apart from the config snapshot it reads per call and is safe for
// unlimited concurrent use.
type Evaluator struct {
	store       *Store
	memberships MembershipResolver
}

// NewEvaluator constructs an Evaluator over the given config store.
// memberships may be nil when no project-scoped decisions are needed
// (client access to project resources then fails closed).
func NewEvaluator(store *Store, memberships MembershipResolver) *Evaluator {
	return &Evaluator{store: store, memberships: memberships}
}

// Resolve returns the approval limit for (role, seniority) from the
// active configuration.
func (e *Evaluator) Resolve(role Role, seniority Seniority) ApprovalLimit {
	return e.store.Load().ResolveLimit(role, seniority)
}

// ConfigVersion exposes the active table generation.
func (e *Evaluator) ConfigVersion() int64 {
	return e.store.Load().Version()
}

// Evaluate decides whether the principal may perform the action on the
// resource. Deny outcomes are returned, not raised; the error return is
// reserved for configuration bugs (unknown role or action) and membership
// lookup failures, both of which fail closed.
func (e *Evaluator) Evaluate(ctx context.Context, principal Principal, action Action, resource *Resource) (Decision, error) {
	cfg := e.store.Load()

	if !principal.Active {
		return Decision{Reason: ReasonPrincipalInactive}, nil
	}
	if !cfg.KnownRole(principal.Role) {
		return Decision{Reason: ReasonUnknownRole}, fmt.Errorf("%w: unknown role %q", ErrConfiguration, principal.Role)
	}
	if !cfg.KnownAction(action) {
		return Decision{Reason: ReasonUnknownAction}, fmt.Errorf("%w: unknown action %q", ErrConfiguration, action)
	}

	// Admin and management always pass, skipping membership checks.
	if principal.Role == RoleAdmin || principal.Role == RoleManagement {
		return Decision{Allow: true, Reason: ReasonRoleBypass}, nil
	}

	if !cfg.Capable(principal.Role, action) {
		return Decision{Reason: ReasonCapabilityNotGranted}, nil
	}

	if principal.Role == RoleClient && resource != nil && resource.ProjectID != uuid.Nil {
		if e.memberships == nil {
			return Decision{Reason: ReasonNoProjectMembership}, nil
		}
		active, err := e.memberships.IsActiveMember(ctx, principal.UserID, resource.ProjectID)
		if err != nil {
			return Decision{Reason: ReasonNoProjectMembership}, fmt.Errorf("authz: membership lookup: %w", err)
		}
		if !active {
			return Decision{Reason: ReasonNoProjectMembership}, nil
		}
	}

	if isFinancialAction(action) && resource != nil && resource.Amount > 0 {
		limit := cfg.ResolveLimit(principal.Role, principal.Seniority)
		if exceedsLimit(action, resource.Amount, limit) {
			return Decision{Reason: ReasonExceedsApprovalLimit}, nil
		}
	}

	decision := Decision{Allow: true, Reason: ReasonGranted}
	if len(resource.costFields()) > 0 && !cfg.CostVisible(principal.Role) {
		decision.RedactedFields = append([]string(nil), resource.CostFields...)
	}
	return decision, nil
}

func (r *Resource) costFields() []string {
	if r == nil {
		return nil
	}
	return r.CostFields
}

func isFinancialAction(action Action) bool {
	switch action {
	case ActionApprovePurchaseOrder, ActionApproveBudgetChange, ActionApproveTimelineExtension:
		return true
	}
	return false
}

func exceedsLimit(action Action, amount float64, limit ApprovalLimit) bool {
	if action == ActionApproveTimelineExtension {
		return amount > float64(limit.TimelineDays)
	}
	return amount > limit.Budget
}
