package orders

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no order matches the given id or number.
var ErrNotFound = errors.New("order not found")

// ErrDuplicateNumber is returned when an insert hits the unique constraint on
// the order number. Creation must fail rather than silently overwrite.
var ErrDuplicateNumber = errors.New("duplicate order number")

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DependencyError wraps a failure of an external collaborator (e.g. the
// pricing service being unreachable or slow). Nothing has been persisted.
type DependencyError struct {
	Service string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure. Transient errors may be retried by
// the caller; constraint violations may not.
type StoreError struct {
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	if e.Transient {
		return fmt.Sprintf("store error (transient): %v", e.Err)
	}
	return fmt.Sprintf("store error: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TransitionError rejects a cancellation of an order already in a terminal
// status. The order is left unchanged.
type TransitionError struct {
	Number string
	Status OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot cancel order %s with status %s", e.Number, e.Status)
}
