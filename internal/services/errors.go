package services

import "errors"

var (
	// ErrConflict is returned when a write collides with an existing
	// barcode or email.
	ErrConflict = errors.New("conflict")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrNotAdmin           = errors.New("admin access required")
)
