package documents

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Document lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Document is a project file going through the review workflow. Clients
// only ever see approved documents flagged client-visible.
type Document struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	Title         string
	Kind          string
	StoragePath   string
	Version       int
	Status        Status
	ClientVisible bool
	UploadedBy    int64
	ReviewedBy    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("documents: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("documents: invalid input")
	// ErrInvalidTransition indicates the document is not in the required
	// status for the requested action.
	ErrInvalidTransition = errors.New("documents: invalid status transition")
	// ErrForbidden indicates the actor may not perform the review action.
	ErrForbidden = errors.New("documents: action not permitted")
)
