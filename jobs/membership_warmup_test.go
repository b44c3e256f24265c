package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/keramy/formulapmv2-sub004/internal/projects"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

type repoStub struct {
	projects     []projects.Project
	members      map[uuid.UUID][]projects.Membership
	memberCalls  map[uuid.UUID]int
	lookupCalls  int
	lookupActive bool
}

func newRepoStub() *repoStub {
	return &repoStub{
		members:     map[uuid.UUID][]projects.Membership{},
		memberCalls: map[uuid.UUID]int{},
	}
}

func (r *repoStub) Create(ctx context.Context, p projects.Project) (projects.Project, error) {
	return p, nil
}

func (r *repoStub) Get(ctx context.Context, id uuid.UUID) (projects.Project, error) {
	for _, p := range r.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return projects.Project{}, projects.ErrNotFound
}

func (r *repoStub) List(ctx context.Context, limit, offset int) ([]projects.Project, int, error) {
	if offset >= len(r.projects) {
		return nil, len(r.projects), nil
	}
	end := offset + limit
	if end > len(r.projects) {
		end = len(r.projects)
	}
	return r.projects[offset:end], len(r.projects), nil
}

func (r *repoStub) ListForMember(ctx context.Context, userID int64, limit, offset int) ([]projects.Project, int, error) {
	return nil, 0, nil
}

func (r *repoStub) UpdateStatus(ctx context.Context, id uuid.UUID, status projects.Status) error {
	return nil
}

func (r *repoStub) UpsertMembership(ctx context.Context, m projects.Membership) error {
	r.members[m.ProjectID] = append(r.members[m.ProjectID], m)
	return nil
}

func (r *repoStub) SetMembershipActive(ctx context.Context, projectID uuid.UUID, userID int64, active bool) error {
	return nil
}

func (r *repoStub) ListMembers(ctx context.Context, projectID uuid.UUID) ([]projects.Membership, error) {
	r.memberCalls[projectID]++
	return r.members[projectID], nil
}

func (r *repoStub) HasActiveMembership(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error) {
	r.lookupCalls++
	return r.lookupActive, nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, log shared.AuditLog) error { return nil }

func newWarmupFixture(t *testing.T, repo *repoStub) *MembershipWarmupJob {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := projects.NewMembershipCache(repo, client, time.Minute)
	svc := projects.NewService(repo, noopAudit{}, cache)
	return NewMembershipWarmupJob(svc, cache, nil, nil)
}

func TestMembershipWarmupPrimesCache(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects = []projects.Project{{ID: projectID, Code: "FP-001", Status: projects.StatusActive}}
	repo.members[projectID] = []projects.Membership{
		{ProjectID: projectID, UserID: 7, IsActive: true},
		{ProjectID: projectID, UserID: 8, IsActive: false},
	}
	job := newWarmupFixture(t, repo)

	task, err := NewMembershipWarmupTask(MembershipWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	active, err := job.Cache.IsActiveMember(context.Background(), 7, projectID)
	require.NoError(t, err)
	require.True(t, active)

	active, err = job.Cache.IsActiveMember(context.Background(), 8, projectID)
	require.NoError(t, err)
	require.False(t, active)

	require.Zero(t, repo.lookupCalls)
}

func TestMembershipWarmupSingleProjectPayload(t *testing.T) {
	repo := newRepoStub()
	first := uuid.New()
	second := uuid.New()
	repo.projects = []projects.Project{{ID: first}, {ID: second}}
	job := newWarmupFixture(t, repo)

	task, err := NewMembershipWarmupTask(MembershipWarmupPayload{ProjectID: first.String()})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 1, repo.memberCalls[first])
	require.Zero(t, repo.memberCalls[second])
}

func TestMembershipWarmupRejectsMalformedPayload(t *testing.T) {
	job := newWarmupFixture(t, newRepoStub())

	err := job.Handle(context.Background(), asynq.NewTask(TaskMembershipWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRetentionSweepWithoutTargets(t *testing.T) {
	job := NewRetentionSweepJob(nil, nil, time.Hour, time.Hour, nil, nil)
	require.NoError(t, job.Handle(context.Background(), NewRetentionSweepTask()))
}
