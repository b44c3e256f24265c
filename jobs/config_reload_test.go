package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	_ "github.com/keramy/formulapmv2-sub004/internal/testing/guard"
)

func newReloadFixture(t *testing.T, path string) (*ConfigReloadJob, *authz.Store) {
	t.Helper()
	store, err := authz.NewStore(authz.DefaultConfig())
	require.NoError(t, err)
	return NewConfigReloadJob(store, path, nil, nil), store
}

func TestConfigReloadSwapsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.json")
	doc := `{
  "capabilities": {
    "client": ["view_project", "edit_project"],
    "admin": ["view_project"]
  },
  "limits": {
    "client": {"standard": {"budget": 0, "timeline_days": 0}}
  },
  "cost_visible": ["admin"]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	job, store := newReloadFixture(t, path)
	before := store.Load()
	require.False(t, before.Capable(authz.RoleClient, authz.ActionEditProject))

	require.NoError(t, job.Handle(context.Background(), NewConfigReloadTask()))

	after := store.Load()
	require.True(t, after.Capable(authz.RoleClient, authz.ActionEditProject))
	require.Greater(t, after.Version(), before.Version())
}

func TestConfigReloadKeepsTablesOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capabilities": {}}`), 0o600))

	job, store := newReloadFixture(t, path)
	before := store.Load()

	err := job.Handle(context.Background(), NewConfigReloadTask())
	require.Error(t, err)
	require.Same(t, before, store.Load())
}

func TestConfigReloadWithoutPathKeepsBuiltins(t *testing.T) {
	job, store := newReloadFixture(t, "")
	before := store.Load()

	require.NoError(t, job.Handle(context.Background(), NewConfigReloadTask()))
	require.Same(t, before, store.Load())
}

func TestConfigReloadUnconfigured(t *testing.T) {
	var job *ConfigReloadJob
	require.Error(t, job.Handle(context.Background(), NewConfigReloadTask()))
}
