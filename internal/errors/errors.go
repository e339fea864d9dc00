package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal
var (
	// Identity errors
	ErrLoginRequired   = errors.New("interactive login required")
	ErrInvalidState    = errors.New("invalid login state")
	ErrNonceMismatch   = errors.New("nonce mismatch")
	ErrIdentityFailure = errors.New("identity provider failure")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Backend errors
	ErrStaleAuthorization = errors.New("backend rejected the current authorization")
	ErrInvalidPayload     = errors.New("invalid request payload")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
