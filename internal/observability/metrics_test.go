package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequestsByRoute(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/projects/{projectID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", metrics.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, "formulapm_http_requests_total")
	require.Contains(t, body, `route="/projects/{projectID}"`)
	require.Contains(t, body, `code="200"`)
}

func TestRecordDecisionLabels(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordDecision("approve_purchase_order", false, "exceeds_approval_limit")
	metrics.RecordDecision("view_project", true, "granted")
	metrics.RecordDecision("view_project", true, "granted")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, `formulapm_authz_decisions_total{action="approve_purchase_order",outcome="deny",reason="exceeds_approval_limit"} 1`)
	require.Contains(t, body, `formulapm_authz_decisions_total{action="view_project",outcome="allow",reason="granted"} 2`)
}

func TestNilMetricsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordDecision("view_project", true, "granted")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	metrics.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.False(t, strings.Contains(rec.Body.String(), "formulapm"))
}
