package errors

import (
	"errors"
)

// Errors shared by the portal services. Package specific conditions (unknown account, duplicate
// e-mail, illegal request transition) live next to the repo that raises them.
var (
	ErrForbidden = errors.New("forbidden")

	// ErrStorage is the only error the session manager and admin services surface for
	// persistence failures. The underlying cause is logged, never returned to callers.
	ErrStorage = errors.New("storage unavailable, please try again")

	ErrInvalidInput = errors.New("invalid input")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
