package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/keramy/formulapmv2-sub004/internal/jobs"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// RetentionSweepJob removes audit rows past the retention window and
// idempotency keys old enough to never be replayed again.
type RetentionSweepJob struct {
	Audit          *shared.AuditLogger
	Idempotency    *shared.IdempotencyStore
	AuditRetention time.Duration
	KeyRetention   time.Duration
	Logger         *slog.Logger
	Metrics        *jobmetrics.Metrics
}

// NewRetentionSweepJob wires dependencies for the sweep handler.
func NewRetentionSweepJob(audit *shared.AuditLogger, idempotency *shared.IdempotencyStore, auditRetention, keyRetention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionSweepJob {
	return &RetentionSweepJob{
		Audit:          audit,
		Idempotency:    idempotency,
		AuditRetention: auditRetention,
		KeyRetention:   keyRetention,
		Logger:         logger,
		Metrics:        metrics,
	}
}

// Handle processes retention sweep tasks.
func (j *RetentionSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("retention sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskRetentionSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()

	if j.Audit != nil && j.AuditRetention > 0 {
		removed, err := j.Audit.Cleanup(ctx, j.AuditRetention)
		if err != nil {
			resultErr = err
			logger.Error("audit cleanup", slog.Any("error", err))
			return resultErr
		}
		j.metrics().AddSwept("audit_logs", removed)
		logger.Info("audit cleanup", slog.Int64("removed", removed))
	}

	if j.Idempotency != nil && j.KeyRetention > 0 {
		if err := j.Idempotency.Cleanup(ctx, j.KeyRetention); err != nil {
			resultErr = err
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return resultErr
		}
		logger.Info("idempotency cleanup", slog.Duration("older_than", j.KeyRetention))
	}

	return resultErr
}

func (j *RetentionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRetentionSweep))
	}
	return slog.Default().With(slog.String("job", TaskRetentionSweep))
}

func (j *RetentionSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
