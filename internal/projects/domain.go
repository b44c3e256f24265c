package projects

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Project lifecycle statuses.
type Status string

const (
	StatusPlanning  Status = "PLANNING"
	StatusActive    Status = "ACTIVE"
	StatusOnHold    Status = "ON_HOLD"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Project domain model.
type Project struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Description string
	Status      Status
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to a project. Client principals need an active
// membership before any project data becomes visible to them.
type Membership struct {
	ProjectID   uuid.UUID
	UserID      int64
	AccessLevel string
	IsActive    bool
	AddedBy     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrNotFound indicates project or membership missing.
	ErrNotFound = errors.New("projects: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("projects: invalid input")
	// ErrDuplicateCode indicates the project code is taken.
	ErrDuplicateCode = errors.New("projects: code already used")
)
