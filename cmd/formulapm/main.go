package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/keramy/formulapmv2-sub004/internal/app"
	"github.com/keramy/formulapmv2-sub004/internal/auth"
	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/documents"
	"github.com/keramy/formulapmv2-sub004/internal/observability"
	"github.com/keramy/formulapmv2-sub004/internal/platform/cache"
	"github.com/keramy/formulapmv2-sub004/internal/platform/db"
	"github.com/keramy/formulapmv2-sub004/internal/projects"
	"github.com/keramy/formulapmv2-sub004/internal/purchase"
	"github.com/keramy/formulapmv2-sub004/internal/scope"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
	"github.com/keramy/formulapmv2-sub004/internal/users"
	"github.com/keramy/formulapmv2-sub004/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "formulapm_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	// Authorization tables: built-in defaults, optionally replaced by file.
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

	projectsRepo := projects.NewRepository(dbpool)
	membershipCache := projects.NewMembershipCache(projectsRepo, redisClient, cfg.MembershipCacheTTL)
	projectsService := projects.NewService(projectsRepo, auditLogger, membershipCache)

	evaluator := authz.NewEvaluator(authzStore, membershipCache)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)

	metrics := observability.NewMetrics()
	authorize := authz.Middleware{
		Evaluator:  evaluator,
		Principals: usersService,
		Logger:     logger,
		Observer:   metrics,
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersHandler := users.NewHandler(logger, usersService, authorize)
	projectsHandler := projects.NewHandler(logger, projectsService, authorize)

	scopeService := scope.NewService(scope.NewRepository(dbpool))
	scopeHandler := scope.NewHandler(logger, scopeService, authorize)

	purchaseService := purchase.NewService(purchase.NewRepository(dbpool), evaluator, approvalRecorder, idempotencyStore)
	purchaseHandler := purchase.NewHandler(logger, purchaseService, authorize)

	documentsService := documents.NewService(documents.NewRepository(dbpool), evaluator, approvalRecorder)
	documentsHandler := documents.NewHandler(logger, documentsService, authorize)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Pool:             dbpool,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		ProjectsHandler:  projectsHandler,
		ScopeHandler:     scopeHandler,
		PurchaseHandler:  purchaseHandler,
		DocumentsHandler: documentsHandler,
		JobHandler:       jobHandler,
		Authorize:        authorize,
		Evaluator:        evaluator,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
