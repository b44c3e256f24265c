package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/keramy/formulapmv2-sub004/internal/jobs"
	"github.com/keramy/formulapmv2-sub004/internal/projects"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MembershipWarmupJob preloads the Redis membership cache so the first
// client request after a deploy or cache flush does not stampede Postgres.
type MembershipWarmupJob struct {
	Projects *projects.Service
	Cache    *projects.MembershipCache
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewMembershipWarmupJob wires dependencies for the warmup handler.
func NewMembershipWarmupJob(svc *projects.Service, cache *projects.MembershipCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *MembershipWarmupJob {
	return &MembershipWarmupJob{Projects: svc, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes membership warmup tasks.
func (j *MembershipWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Projects == nil || j.Cache == nil {
		return errors.New("membership warmup: handler not configured")
	}
	var payload MembershipWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskMembershipWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()

	projectIDs, err := j.targetProjects(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("resolve warmup projects", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, projectID := range projectIDs {
		members, err := j.Projects.Members(ctx, projectID)
		if err != nil {
			resultErr = err
			logger.Error("load members", slog.String("project_id", projectID.String()), slog.Any("error", err))
			return resultErr
		}
		if err := j.Cache.Warm(ctx, members); err != nil {
			resultErr = err
			logger.Error("warm cache", slog.String("project_id", projectID.String()), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed membership warmup", slog.Int("projects", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *MembershipWarmupJob) targetProjects(ctx context.Context, payload MembershipWarmupPayload) ([]uuid.UUID, error) {
	if payload.ProjectID != "" {
		id, err := uuid.Parse(payload.ProjectID)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{id}, nil
	}
	// Page through every project; warmup runs off-peak so volume is fine.
	var ids []uuid.UUID
	offset := 0
	const pageSize = 100
	for {
		page, total, err := j.Projects.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			return ids, nil
		}
	}
}

func (j *MembershipWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMembershipWarmup))
	}
	return slog.Default().With(slog.String("job", TaskMembershipWarmup))
}

func (j *MembershipWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
