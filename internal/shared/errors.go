package shared

import "errors"

// Sentinels shared across the auth and session layers.
var (
	// ErrNotFound indicates a missing account or session row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers wrong password, unknown email and
	// deactivated accounts alike, so login responses stay uniform.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing indicates a mutating request without a token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch indicates a token that failed verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
