package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/keramy/formulapmv2-sub004/internal/app"
	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/platform/cache"
	"github.com/keramy/formulapmv2-sub004/internal/platform/db"
	"github.com/keramy/formulapmv2-sub004/internal/projects"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
	"github.com/keramy/formulapmv2-sub004/jobs"
)

// Idempotency keys only guard short replay windows; a week is plenty.
const idempotencyKeyRetention = 7 * 24 * time.Hour

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	authzConfig := authz.DefaultConfig()
	if cfg.AuthzConfigPath != "" {
		loaded, err := authz.LoadConfigFile(cfg.AuthzConfigPath)
		if err != nil {
			logger.Error("load authz config", slog.String("path", cfg.AuthzConfigPath), slog.Any("error", err))
			os.Exit(1)
		}
		authzConfig = loaded
	}
	authzStore, err := authz.NewStore(authzConfig)
	if err != nil {
		logger.Error("init authz store", slog.Any("error", err))
		os.Exit(1)
	}

	projectsRepo := projects.NewRepository(pool)
	membershipCache := projects.NewMembershipCache(projectsRepo, redisClient, cfg.MembershipCacheTTL)
	projectsService := projects.NewService(projectsRepo, auditLogger, membershipCache)

	warmupJob := jobs.NewMembershipWarmupJob(projectsService, membershipCache, logger, nil)
	sweepJob := jobs.NewRetentionSweepJob(auditLogger, idempotencyStore, cfg.AuditRetention, idempotencyKeyRetention, logger, nil)
	reloadJob := jobs.NewConfigReloadJob(authzStore, cfg.AuthzConfigPath, logger, nil)

	warmupTask, err := jobs.NewMembershipWarmupTask(jobs.MembershipWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMembershipWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskRetentionSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskConfigReload, Handler: reloadJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: jobs.NewRetentionSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: jobs.NewConfigReloadTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
