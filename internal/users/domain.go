package users

import (
	"errors"
	"time"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
)

// User represents a provisioned account. Accounts are never hard-deleted;
// deactivation flips IsActive.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         authz.Role
	Seniority    authz.Seniority
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("users: invalid input")
)
