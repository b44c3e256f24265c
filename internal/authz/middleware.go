package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// PrincipalResolver turns a session user ID into a Principal. Backed by
// the users module.
type PrincipalResolver interface {
	PrincipalByID(ctx context.Context, userID int64) (Principal, error)
}

// DecisionObserver receives the outcome of every middleware evaluation.
type DecisionObserver interface {
	RecordDecision(action string, allowed bool, reason string)
}

// Middleware wires the evaluator into chi routes.
type Middleware struct {
	Evaluator  *Evaluator
	Principals PrincipalResolver
	Logger     *slog.Logger
	Observer   DecisionObserver
}

// Require gates a route on a capability with no resource context.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.authorize(w, r, next, action, nil)
		})
	}
}

// RequireProject gates a route on a capability against the project
// identified by the named URL parameter. The decision, including any
// redaction list, is placed in the request context for the handler.
func (m Middleware) RequireProject(action Action, param string, costFields ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, param)
			projectID, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			m.authorize(w, r, next, action, &Resource{ProjectID: projectID, CostFields: costFields})
		})
	}
}

func (m Middleware) authorize(w http.ResponseWriter, r *http.Request, next http.Handler, action Action, resource *Resource) {
	principal, ok := m.currentPrincipal(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	decision, err := m.Evaluator.Evaluate(r.Context(), principal, action, resource)
	m.observe(action, decision)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			if m.Logger != nil {
				m.Logger.Error("authz configuration", slog.String("action", string(action)), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if m.Logger != nil {
			m.Logger.Error("authz evaluate", slog.String("action", string(action)), slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	if !decision.Allow {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	ctx := ContextWithPrincipal(r.Context(), principal)
	ctx = ContextWithDecision(ctx, decision)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (m Middleware) observe(action Action, decision Decision) {
	if m.Observer == nil {
		return
	}
	m.Observer.RecordDecision(string(action), decision.Allow, decision.Reason)
}

func (m Middleware) currentPrincipal(r *http.Request) (Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Principal{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Principal{}, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return Principal{}, false
	}
	principal, err := m.Principals.PrincipalByID(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("authz resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return Principal{}, false
	}
	return principal, true
}
