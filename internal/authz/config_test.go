package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigKnowsAllRoles(t *testing.T) {
	cfg := DefaultConfig()
	for _, role := range []Role{RoleManagement, RoleTechnicalLead, RoleProjectManager, RolePurchaseManager, RoleClient, RoleAdmin} {
		require.True(t, cfg.KnownRole(role), "role %s", role)
	}
	require.False(t, cfg.KnownRole(Role("contractor")))
	require.False(t, cfg.KnownAction(Action("launch_rocket")))
}

func TestClientGrantsAreViewOnly(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Capable(RoleClient, ActionViewProject))
	require.True(t, cfg.Capable(RoleClient, ActionViewDocument))
	require.False(t, cfg.Capable(RoleClient, ActionEditProject))
	require.False(t, cfg.Capable(RoleClient, ActionApprovePurchaseOrder))
	require.False(t, cfg.Capable(RoleClient, ActionViewCost))
}

func TestProjectManagerRunsProjects(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Capable(RoleProjectManager, ActionCreateProject))
	require.True(t, cfg.Capable(RoleProjectManager, ActionEditProject))
	require.True(t, cfg.Capable(RoleProjectManager, ActionManageMembers))
	require.False(t, cfg.Capable(RoleProjectManager, ActionApprovePurchaseOrder))
	require.False(t, cfg.Capable(RoleProjectManager, ActionManageUsers))
}

func TestCostVisibilityExcludesProjectManagerAndClient(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.CostVisible(RoleManagement))
	require.True(t, cfg.CostVisible(RoleTechnicalLead))
	require.True(t, cfg.CostVisible(RolePurchaseManager))
	require.True(t, cfg.CostVisible(RoleAdmin))
	require.False(t, cfg.CostVisible(RoleProjectManager))
	require.False(t, cfg.CostVisible(RoleClient))
}

func TestResolveLimitFallsToFloor(t *testing.T) {
	cfg := DefaultConfig()

	limit := cfg.ResolveLimit(RoleProjectManager, SenioritySenior)
	require.Equal(t, float64(50000), limit.Budget)
	require.Equal(t, 30, limit.TimelineDays)

	// Unmapped seniority never inherits a generous tier.
	limit = cfg.ResolveLimit(RoleProjectManager, Seniority("founder"))
	require.Equal(t, float64(15000), limit.Budget)
	require.Equal(t, 7, limit.TimelineDays)

	require.Equal(t, ApprovalLimit{}, cfg.ResolveLimit(Role("contractor"), SenioritySenior))
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.json")
	doc := `{
  "capabilities": {
    "project_manager": ["view_project", "approve_budget_change"],
    "client": ["view_project"]
  },
  "limits": {
    "project_manager": {
      "senior": {"budget": 90000, "timeline_days": 45}
    }
  },
  "cost_visible": ["project_manager"]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.True(t, cfg.Capable(RoleProjectManager, ActionApproveBudgetChange))
	require.False(t, cfg.Capable(RoleProjectManager, ActionEditProject))
	require.True(t, cfg.CostVisible(RoleProjectManager))
	require.Equal(t, float64(90000), cfg.ResolveLimit(RoleProjectManager, SenioritySenior).Budget)
}

func TestLoadConfigFileRejectsEmptyCapabilities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capabilities": {}}`), 0o600))

	_, err := LoadConfigFile(path)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
