package authz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeMemberships struct {
	active map[string]bool
	err    error
}

func (f *fakeMemberships) IsActiveMember(_ context.Context, userID int64, projectID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[memberKey(userID, projectID)], nil
}

func memberKey(userID int64, projectID uuid.UUID) string {
	return fmt.Sprintf("%d/%s", userID, projectID)
}

func newEvaluator(t *testing.T, memberships MembershipResolver) *Evaluator {
	t.Helper()
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)
	return NewEvaluator(store, memberships)
}

func activePrincipal(role Role, seniority Seniority) Principal {
	return Principal{UserID: 1, Role: role, Seniority: seniority, Active: true}
}

func TestInactivePrincipalAlwaysDenied(t *testing.T) {
	eval := newEvaluator(t, nil)
	for _, role := range []Role{RoleAdmin, RoleManagement, RoleProjectManager, RoleClient} {
		principal := Principal{UserID: 1, Role: role, Seniority: SenioritySenior, Active: false}
		decision, err := eval.Evaluate(context.Background(), principal, ActionViewProject, nil)
		require.NoError(t, err)
		require.False(t, decision.Allow)
		require.Equal(t, ReasonPrincipalInactive, decision.Reason)
	}
}

func TestUnknownRoleFailsClosedWithConfigurationError(t *testing.T) {
	eval := newEvaluator(t, nil)
	principal := Principal{UserID: 1, Role: "contractor", Seniority: SeniorityRegular, Active: true}
	decision, err := eval.Evaluate(context.Background(), principal, ActionViewProject, nil)
	require.ErrorIs(t, err, ErrConfiguration)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonUnknownRole, decision.Reason)
}

func TestUnknownActionFailsClosedWithConfigurationError(t *testing.T) {
	eval := newEvaluator(t, nil)
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleAdmin, SeniorityStandard), Action("launch_rocket"), nil)
	require.ErrorIs(t, err, ErrConfiguration)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonUnknownAction, decision.Reason)
}

func TestAdminAndManagementBypassMembership(t *testing.T) {
	// Resolver would deny everyone; bypass roles never reach it.
	eval := newEvaluator(t, &fakeMemberships{active: map[string]bool{}})
	resource := &Resource{ProjectID: uuid.New()}
	for _, role := range []Role{RoleAdmin, RoleManagement} {
		decision, err := eval.Evaluate(context.Background(), activePrincipal(role, SeniorityExecutive), ActionViewProject, resource)
		require.NoError(t, err)
		require.True(t, decision.Allow)
		require.Equal(t, ReasonRoleBypass, decision.Reason)
	}
}

func TestCapabilityNotGrantedDenied(t *testing.T) {
	eval := newEvaluator(t, nil)
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleClient, SeniorityStandard), ActionEditScopeItem, nil)
	require.NoError(t, err)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonCapabilityNotGranted, decision.Reason)
}

func TestClientNeedsActiveMembership(t *testing.T) {
	projectID := uuid.New()
	memberships := &fakeMemberships{active: map[string]bool{}}
	eval := newEvaluator(t, memberships)
	client := activePrincipal(RoleClient, SeniorityStandard)

	decision, err := eval.Evaluate(context.Background(), client, ActionViewProject, &Resource{ProjectID: projectID})
	require.NoError(t, err)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonNoProjectMembership, decision.Reason)

	memberships.active[memberKey(client.UserID, projectID)] = true
	decision, err = eval.Evaluate(context.Background(), client, ActionViewProject, &Resource{ProjectID: projectID})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}

func TestMembershipLookupErrorFailsClosed(t *testing.T) {
	eval := newEvaluator(t, &fakeMemberships{err: errors.New("redis down")})
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleClient, SeniorityStandard), ActionViewProject, &Resource{ProjectID: uuid.New()})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrConfiguration)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonNoProjectMembership, decision.Reason)
}

func TestNonClientRolesSkipMembership(t *testing.T) {
	// Resolver that would fail if consulted.
	eval := newEvaluator(t, &fakeMemberships{err: errors.New("must not be called")})
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleProjectManager, SeniorityRegular), ActionViewProject, &Resource{ProjectID: uuid.New()})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}

func TestClientCostFieldsRedactedNotDenied(t *testing.T) {
	projectID := uuid.New()
	client := activePrincipal(RoleClient, SeniorityStandard)
	memberships := &fakeMemberships{active: map[string]bool{memberKey(client.UserID, projectID): true}}
	eval := newEvaluator(t, memberships)

	decision, err := eval.Evaluate(context.Background(), client, ActionViewPurchaseOrder, &Resource{
		ProjectID:  projectID,
		CostFields: []string{"unit_price", "total_price"},
	})
	require.NoError(t, err)
	require.True(t, decision.Allow)
	require.Equal(t, []string{"unit_price", "total_price"}, decision.RedactedFields)
}

func TestCostVisibleRolesGetNoRedaction(t *testing.T) {
	eval := newEvaluator(t, nil)
	resource := &Resource{ProjectID: uuid.New(), CostFields: []string{"unit_price"}}
	for _, role := range []Role{RoleTechnicalLead, RolePurchaseManager} {
		decision, err := eval.Evaluate(context.Background(), activePrincipal(role, SenioritySenior), ActionViewScopeItem, resource)
		require.NoError(t, err)
		require.True(t, decision.Allow)
		require.Empty(t, decision.RedactedFields)
	}
}

func TestProjectManagerCostFieldsRedacted(t *testing.T) {
	eval := newEvaluator(t, nil)
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleProjectManager, SenioritySenior), ActionViewScopeItem, &Resource{
		ProjectID:  uuid.New(),
		CostFields: []string{"unit_price", "total_price"},
	})
	require.NoError(t, err)
	require.True(t, decision.Allow)
	require.Equal(t, []string{"unit_price", "total_price"}, decision.RedactedFields)
}

func TestBudgetApprovalOverLimitDenied(t *testing.T) {
	eval := newEvaluator(t, nil)
	pm := activePrincipal(RoleProjectManager, SeniorityRegular)

	decision, err := eval.Evaluate(context.Background(), pm, ActionApproveBudgetChange, &Resource{Amount: 20000})
	require.NoError(t, err)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonExceedsApprovalLimit, decision.Reason)

	decision, err = eval.Evaluate(context.Background(), pm, ActionApproveBudgetChange, &Resource{Amount: 12000})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}

func TestTimelineExtensionComparedAgainstDays(t *testing.T) {
	eval := newEvaluator(t, nil)
	pm := activePrincipal(RoleProjectManager, SeniorityRegular)

	decision, err := eval.Evaluate(context.Background(), pm, ActionApproveTimelineExtension, &Resource{Amount: 10})
	require.NoError(t, err)
	require.False(t, decision.Allow)
	require.Equal(t, ReasonExceedsApprovalLimit, decision.Reason)

	decision, err = eval.Evaluate(context.Background(), pm, ActionApproveTimelineExtension, &Resource{Amount: 5})
	require.NoError(t, err)
	require.True(t, decision.Allow)
}

func TestResolveLimits(t *testing.T) {
	eval := newEvaluator(t, nil)

	require.Equal(t, float64(100000), eval.Resolve(RolePurchaseManager, SenioritySenior).Budget)
	require.Equal(t, float64(25000), eval.Resolve(RolePurchaseManager, SeniorityRegular).Budget)
	// Unrecognised seniority falls to the role's most conservative limit.
	require.Equal(t, float64(25000), eval.Resolve(RolePurchaseManager, Seniority("apprentice")).Budget)
	// Unknown role resolves to the zero limit.
	require.Equal(t, ApprovalLimit{}, eval.Resolve(Role("contractor"), SenioritySenior))
}

func TestNilResourceSafe(t *testing.T) {
	eval := newEvaluator(t, nil)
	decision, err := eval.Evaluate(context.Background(), activePrincipal(RoleProjectManager, SenioritySenior), ActionViewProject, nil)
	require.NoError(t, err)
	require.True(t, decision.Allow)
	require.Equal(t, ReasonGranted, decision.Reason)
	require.Empty(t, decision.RedactedFields)
}

func TestRepeatedEvaluationIsDeterministic(t *testing.T) {
	projectID := uuid.New()
	client := activePrincipal(RoleClient, SeniorityStandard)
	memberships := &fakeMemberships{active: map[string]bool{memberKey(client.UserID, projectID): true}}
	eval := newEvaluator(t, memberships)

	redacting := &Resource{ProjectID: projectID, CostFields: []string{"unit_price", "total_price"}}
	first, err := eval.Evaluate(context.Background(), client, ActionViewPurchaseOrder, redacting)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := eval.Evaluate(context.Background(), client, ActionViewPurchaseOrder, redacting)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// Denials repeat exactly as well.
	pm := activePrincipal(RoleProjectManager, SeniorityRegular)
	overLimit := &Resource{ProjectID: projectID, Amount: 20000}
	first, err = eval.Evaluate(context.Background(), pm, ActionApproveBudgetChange, overLimit)
	require.NoError(t, err)
	require.False(t, first.Allow)
	again, err := eval.Evaluate(context.Background(), pm, ActionApproveBudgetChange, overLimit)
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestConfigSwapChangesOutcome(t *testing.T) {
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)
	eval := NewEvaluator(store, nil)
	pm := activePrincipal(RoleProjectManager, SeniorityRegular)

	decision, err := eval.Evaluate(context.Background(), pm, ActionCreateProject, nil)
	require.NoError(t, err)
	require.False(t, decision.Allow)

	b := newConfigBuilder()
	b.grant(RoleProjectManager, ActionCreateProject, ActionViewProject)
	store.Swap(b.build(0))

	decision, err = eval.Evaluate(context.Background(), pm, ActionCreateProject, nil)
	require.NoError(t, err)
	require.True(t, decision.Allow)
	require.Equal(t, int64(2), eval.ConfigVersion())
}
