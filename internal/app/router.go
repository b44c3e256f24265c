package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keramy/formulapmv2-sub004/internal/auth"
	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/documents"
	"github.com/keramy/formulapmv2-sub004/internal/observability"
	"github.com/keramy/formulapmv2-sub004/internal/projects"
	"github.com/keramy/formulapmv2-sub004/internal/purchase"
	"github.com/keramy/formulapmv2-sub004/internal/scope"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
	"github.com/keramy/formulapmv2-sub004/internal/users"
	"github.com/keramy/formulapmv2-sub004/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Pool           *pgxpool.Pool

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	ProjectsHandler  *projects.Handler
	ScopeHandler     *scope.Handler
	PurchaseHandler  *purchase.Handler
	DocumentsHandler *documents.Handler
	JobHandler       *jobs.Handler

	Authorize authz.Middleware
	Evaluator *authz.Evaluator
	Metrics   *observability.Metrics
}

// NewRouter constructs the chi.Router with Formula PM defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Evaluator != nil {
		r.Get("/healthz/authz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			version := params.Evaluator.ConfigVersion()
			_, _ = w.Write([]byte(`{"status":"ok","config_version":` + strconv.FormatInt(version, 10) + `}`))
		})
	}
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})
	r.Route("/users", func(r chi.Router) {
		params.UsersHandler.MountRoutes(r)
	})
	r.Route("/projects", func(r chi.Router) {
		params.ProjectsHandler.MountRoutes(r)
		params.ScopeHandler.MountRoutes(r)
		params.PurchaseHandler.MountRoutes(r)
		params.DocumentsHandler.MountRoutes(r)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.Authorize.Require(authz.ActionManageUsers))
				params.JobHandler.MountAdminRoutes(r)
			})
		})
	}

	return r
}
