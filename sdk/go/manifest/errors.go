// Package manifest provides a Go client for the Manifest command API.
package manifest

import (
	"errors"
	"fmt"
)

// Error represents an error from the Manifest API with the HTTP status
// code and the server's message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 (unknown command or
// entity instance not found).
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 401
	}
	return false
}

// IsGuardBlocked returns true if the error is a 422, meaning a blocking
// guard rejected the command.
func IsGuardBlocked(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 422
	}
	return false
}

// IsConflict returns true if the error is a 409: either a stale
// manifest-state version or an idempotency key reused with a different
// request.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 409
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}
