package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

const moduleName = "documents"

// Decider is the authorization decision point for review actions.
type Decider interface {
	Evaluate(ctx context.Context, principal authz.Principal, action authz.Action, resource *authz.Resource) (authz.Decision, error)
}

// ApprovalPort records review history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
}

// Service orchestrates the document review workflow.
type Service struct {
	repo      Repository
	decider   Decider
	approvals ApprovalPort
}

// NewService constructs the documents service.
func NewService(repo Repository, decider Decider, approvals ApprovalPort) *Service {
	return &Service{repo: repo, decider: decider, approvals: approvals}
}

// UploadInput describes a new document version.
type UploadInput struct {
	ProjectID     uuid.UUID
	Title         string
	Kind          string
	StoragePath   string
	ClientVisible bool
	UploadedBy    int64
}

// Upload registers a draft document. Versioning per (project, title) is
// handled by the repository.
func (s *Service) Upload(ctx context.Context, input UploadInput) (Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || input.ProjectID == uuid.Nil || strings.TrimSpace(input.StoragePath) == "" {
		return Document{}, ErrValidation
	}
	return s.repo.Create(ctx, Document{
		ID:            uuid.New(),
		ProjectID:     input.ProjectID,
		Title:         title,
		Kind:          strings.TrimSpace(input.Kind),
		StoragePath:   strings.TrimSpace(input.StoragePath),
		Status:        StatusDraft,
		ClientVisible: input.ClientVisible,
		UploadedBy:    input.UploadedBy,
	})
}

// Get fetches a document. Client principals only see approved
// client-visible documents; anything else reads as not found.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if principal.Role == authz.RoleClient && !visibleToClient(doc) {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByProject returns project documents, narrowed for clients.
func (s *Service) ListByProject(ctx context.Context, principal authz.Principal, projectID uuid.UUID) ([]Document, error) {
	return s.repo.ListByProject(ctx, projectID, principal.Role == authz.RoleClient)
}

// Submit moves a draft into review.
func (s *Service) Submit(ctx context.Context, actorID int64, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != StatusDraft {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, doc.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusSubmitted, nil); err != nil {
		return err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, moduleName, id, actorID, doc.Title)
	}
	return nil
}

// Review approves or rejects a submitted document. The decider enforces
// the approve_document capability against the document's project.
func (s *Service) Review(ctx context.Context, principal authz.Principal, id uuid.UUID, approve bool, note string) (Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusSubmitted {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidTransition, doc.Status)
	}
	decision, err := s.decider.Evaluate(ctx, principal, authz.ActionApproveDocument, &authz.Resource{ProjectID: doc.ProjectID})
	if err != nil {
		return Document{}, err
	}
	if !decision.Allow {
		return Document{}, fmt.Errorf("%w: %s", ErrForbidden, decision.Reason)
	}

	status := StatusRejected
	action := shared.ApprovalReject
	if approve {
		status = StatusApproved
		action = shared.ApprovalApprove
	}
	if err := s.repo.UpdateStatus(ctx, id, status, &principal.UserID); err != nil {
		return Document{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: moduleName, RefID: id, ActorID: principal.UserID, Action: action, Note: note})
	}
	return s.repo.Get(ctx, id)
}

// SetClientVisible flips the client visibility flag.
func (s *Service) SetClientVisible(ctx context.Context, id uuid.UUID, visible bool) error {
	return s.repo.SetClientVisible(ctx, id, visible)
}

func visibleToClient(doc Document) bool {
	return doc.ClientVisible && doc.Status == StatusApproved
}
