// Package fault defines the error categories shared by the pairing directory,
// the subscription registry and the pairing bridge.
//
// Every package-level sentinel error wraps exactly one category, so callers
// can branch on the category with errors.Is without knowing the concrete
// error:
//
//	if errors.Is(err, fault.ErrCapacityExceeded) {
//	    // drop and wait for the next discovery round
//	}
//
// Conflict, CapacityExceeded and NotFound are expected outcomes, not failures
// of the node. Only InvalidArgument indicates a caller bug.
package fault

import "errors"

// Error categories.
var (
	// ErrInvalidArgument reports a nil, zero-length or out-of-range input.
	// It is always detected before any table is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict reports an entry that already exists (name already paired,
	// token already in use).
	ErrConflict = errors.New("conflict")

	// ErrCapacityExceeded reports that no free slot was available.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrNotFound reports a lookup miss.
	ErrNotFound = errors.New("not found")
)

// Category returns the category wrapped by err, or nil if err does not wrap
// one of the known categories.
func Category(err error) error {
	for _, c := range []error{ErrInvalidArgument, ErrConflict, ErrCapacityExceeded, ErrNotFound} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// IsExpected reports whether err is a normal, non-fatal outcome that should
// not be logged as an error (conflict, capacity or lookup miss).
func IsExpected(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrNotFound)
}
