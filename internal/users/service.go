package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// AuditPort records account changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps account provisioning rules.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService constructs the users service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new account.
type CreateInput struct {
	Email     string
	FullName  string
	Password  string
	Role      string
	Seniority string
}

// Create provisions an account with a hashed password.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return User{}, ErrValidation
	}
	role := roleFromString(input.Role)
	if role == "" {
		return User{}, fmt.Errorf("%w: role %q", ErrValidation, input.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: string(hash),
		Role:         role,
		Seniority:    seniorityFromString(input.Seniority),
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "USER_CREATE", user.ID, map[string]any{"email": user.Email, "role": string(user.Role)})
	return user, nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// ChangeRole updates role and seniority.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, role, seniority string) (User, error) {
	parsed := roleFromString(role)
	if parsed == "" {
		return User{}, fmt.Errorf("%w: role %q", ErrValidation, role)
	}
	user, err := s.repo.UpdateRole(ctx, userID, string(parsed), string(seniorityFromString(seniority)))
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "USER_ROLE_CHANGE", user.ID, map[string]any{"role": string(user.Role), "seniority": string(user.Seniority)})
	return user, nil
}

// Deactivate flips the account inactive. Accounts are never deleted.
func (s *Service) Deactivate(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.SetActive(ctx, userID, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "USER_DEACTIVATE", userID, nil)
	return nil
}

// Reactivate re-enables a previously deactivated account.
func (s *Service) Reactivate(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.SetActive(ctx, userID, true); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "USER_REACTIVATE", userID, nil)
	return nil
}

// PrincipalByID resolves the authorization principal for a user. Implements
// authz.PrincipalResolver.
func (s *Service) PrincipalByID(ctx context.Context, userID int64) (authz.Principal, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	return authz.Principal{
		UserID:    user.ID,
		Role:      user.Role,
		Seniority: user.Seniority,
		Active:    user.IsActive,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "users", EntityID: fmt.Sprintf("%d", userID), Meta: meta})
}

func roleFromString(value string) authz.Role {
	switch authz.Role(strings.TrimSpace(strings.ToLower(value))) {
	case authz.RoleManagement:
		return authz.RoleManagement
	case authz.RoleTechnicalLead:
		return authz.RoleTechnicalLead
	case authz.RoleProjectManager:
		return authz.RoleProjectManager
	case authz.RolePurchaseManager:
		return authz.RolePurchaseManager
	case authz.RoleClient:
		return authz.RoleClient
	case authz.RoleAdmin:
		return authz.RoleAdmin
	}
	return ""
}

func seniorityFromString(value string) authz.Seniority {
	switch authz.Seniority(strings.TrimSpace(strings.ToLower(value))) {
	case authz.SeniorityExecutive:
		return authz.SeniorityExecutive
	case authz.SenioritySenior:
		return authz.SenioritySenior
	case authz.SeniorityRegular:
		return authz.SeniorityRegular
	}
	// Unmapped tiers resolve to the most restrictive one.
	return authz.SeniorityStandard
}
