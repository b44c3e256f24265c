package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// AuditPort records project mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator is notified after membership mutations so cached
// membership answers get dropped.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service orchestrates project and membership flows.
type Service struct {
	repo        Repository
	audit       AuditPort
	invalidator Invalidator
}

// NewService constructs the projects service.
func NewService(repo Repository, audit AuditPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator}
}

// CreateInput describes a new project.
type CreateInput struct {
	Code        string
	Name        string
	Description string
	CreatedBy   int64
}

// Create registers a new project in PLANNING status.
func (s *Service) Create(ctx context.Context, input CreateInput) (Project, error) {
	code := strings.TrimSpace(strings.ToUpper(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return Project{}, ErrValidation
	}
	project, err := s.repo.Create(ctx, Project{
		ID:          uuid.New(),
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      StatusPlanning,
		CreatedBy:   input.CreatedBy,
	})
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "PROJECT_CREATE", project.ID, map[string]any{"code": project.Code})
	return project, nil
}

// Get fetches a project by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of all projects. Used for management visibility.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Project, int, error) {
	return s.repo.List(ctx, normalizeLimit(limit), normalizeOffset(offset))
}

// ListForMember returns projects visible to a membership-scoped principal.
func (s *Service) ListForMember(ctx context.Context, userID int64, limit, offset int) ([]Project, int, error) {
	return s.repo.ListForMember(ctx, userID, normalizeLimit(limit), normalizeOffset(offset))
}

// UpdateStatus transitions the project lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, actorID int64, id uuid.UUID, status Status) error {
	switch status {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
	default:
		return fmt.Errorf("%w: status %q", ErrValidation, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PROJECT_STATUS", id, map[string]any{"status": string(status)})
	return nil
}

// AddMember creates or reactivates a membership.
func (s *Service) AddMember(ctx context.Context, actorID int64, projectID uuid.UUID, userID int64, accessLevel string) error {
	if userID == 0 {
		return ErrValidation
	}
	if accessLevel == "" {
		accessLevel = "standard"
	}
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return err
	}
	err := s.repo.UpsertMembership(ctx, Membership{
		ProjectID:   projectID,
		UserID:      userID,
		AccessLevel: accessLevel,
		IsActive:    true,
		AddedBy:     actorID,
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "MEMBER_ADD", projectID, map[string]any{"user_id": userID, "access_level": accessLevel})
	return nil
}

// RemoveMember deactivates a membership. The row is kept for history.
func (s *Service) RemoveMember(ctx context.Context, actorID int64, projectID uuid.UUID, userID int64) error {
	if err := s.repo.SetMembershipActive(ctx, projectID, userID, false); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "MEMBER_REMOVE", projectID, map[string]any{"user_id": userID})
	return nil
}

// Members lists memberships for a project.
func (s *Service) Members(ctx context.Context, projectID uuid.UUID) ([]Membership, error) {
	return s.repo.ListMembers(ctx, projectID)
}

// IsActiveMember answers the membership question directly from storage.
// The cached path lives in MembershipCache.
func (s *Service) IsActiveMember(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error) {
	return s.repo.HasActiveMembership(ctx, userID, projectID)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, projectID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "projects", EntityID: projectID.String(), Meta: meta})
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
