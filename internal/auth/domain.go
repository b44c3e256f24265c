package auth

import "time"

// Account is the credential view of a user row used during login.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
