package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the offer flow. Handlers map these onto HTTP status
// codes; everything else is treated as an internal error.
var (
	// ErrInvalidRequest marks malformed input, rejected before any remote call.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks a missing offer or a traded item the catalog doesn't know.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an inactive item or a disallowed status transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden marks an ownership violation on offered or requested items.
	ErrForbidden = errors.New("forbidden")

	// ErrServiceUnavailable marks an unhealthy downstream dependency, after
	// retries are exhausted or while its circuit breaker is open.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// TransientError wraps a remote failure that is worth retrying: connection
// drops, timeouts, 5xx responses. Business failures never carry this type.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
