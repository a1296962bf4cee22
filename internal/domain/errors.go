package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the session lacks the required role. It matches ErrUnauthorized.
	ErrForbidden = fmt.Errorf("%w: insufficient role", ErrUnauthorized)

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")

	ErrInsufficientCredits = fmt.Errorf("%w: insufficient credits", ErrValidation)
	ErrAlreadyExists       = fmt.Errorf("%w: already exists", ErrValidation)
)

// Validationf builds an ErrValidation carrying a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storage wraps a persistence failure. The wrapped detail is for logs only.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
