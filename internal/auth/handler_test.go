package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

func newTestHandler(t *testing.T, repo Repository) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(nil, "formulapm_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	return NewHandler(logger, NewService(repo), sessions, csrf)
}

func withSession(r *http.Request) (*http.Request, *shared.Session) {
	sess := &shared.Session{ID: "test-session"}
	return r.WithContext(shared.ContextWithSession(r.Context(), sess)), sess
}

func TestLoginSetsSessionUser(t *testing.T) {
	repo := newFakeRepo()
	account := addAccount(t, repo, "pm@formulapm.com", "correct-horse", true)
	handler := newTestHandler(t, repo)

	router := chi.NewRouter()
	handler.MountRoutes(router)

	body := `{"email":"pm@formulapm.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"role":"project_manager"`)
	require.Equal(t, "1", sess.User())
	require.Equal(t, account.ID, repo.sessions["test-session"])
}

func TestLoginBadCredentialsUnauthorized(t *testing.T) {
	repo := newFakeRepo()
	addAccount(t, repo, "pm@formulapm.com", "correct-horse", true)
	handler := newTestHandler(t, repo)

	router := chi.NewRouter()
	handler.MountRoutes(router)

	body := `{"email":"pm@formulapm.com","password":"battery-staple"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
}

func TestLoginValidatesBody(t *testing.T) {
	handler := newTestHandler(t, newFakeRepo())
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"nope","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRemovesSessionRecord(t *testing.T) {
	repo := newFakeRepo()
	repo.sessions["test-session"] = 7
	handler := newTestHandler(t, repo)

	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req, _ = withSession(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotContains(t, repo.sessions, "test-session")
}

func TestCSRFTokenIssued(t *testing.T) {
	handler := newTestHandler(t, newFakeRepo())
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
	req, _ = withSession(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "csrf_token")
}
