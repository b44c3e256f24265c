package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

type fakeRepo struct {
	accounts map[string]*Account
	sessions map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[string]*Account{}, sessions: map[string]int64{}}
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	account, ok := f.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (f *fakeRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	f.sessions[id] = userID
	return nil
}

func (f *fakeRepo) DeleteSession(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func addAccount(t *testing.T, repo *fakeRepo, email, password string, active bool) *Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account := &Account{ID: int64(len(repo.accounts) + 1), Email: email, PasswordHash: string(hash), Role: "project_manager", IsActive: active}
	repo.accounts[email] = account
	return account
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newFakeRepo()
	addAccount(t, repo, "pm@formulapm.com", "correct-horse", true)
	svc := NewService(repo)

	account, err := svc.Authenticate(context.Background(), "pm@formulapm.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, "pm@formulapm.com", account.Email)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	addAccount(t, repo, "pm@formulapm.com", "correct-horse", true)
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "pm@formulapm.com", "battery-staple")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.Authenticate(context.Background(), "ghost@formulapm.com", "whatever")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newFakeRepo()
	addAccount(t, repo, "gone@formulapm.com", "correct-horse", false)
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "gone@formulapm.com", "correct-horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	require.NoError(t, svc.RegisterSession(context.Background(), "sess-1", 7, time.Now().Add(time.Hour), "127.0.0.1", "go-test"))
	require.Equal(t, int64(7), repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(context.Background(), "sess-1"))
	require.NotContains(t, repo.sessions, "sess-1")
}
