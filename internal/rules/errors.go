package rules

import "errors"

// ErrLastAdmin is returned when a change would leave the system without an admin.
var ErrLastAdmin = errors.New("at least one admin must remain")

// ValidationError reports malformed or missing input. The caller must correct
// the request; it is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
