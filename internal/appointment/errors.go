package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTimeConflict        = errors.New("requested time overlaps an existing appointment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrScheduleBusy        = errors.New("doctor schedule is being modified, please retry")
	ErrInvalidDuration     = errors.New("duration must be a positive number of minutes")
)

// InvariantError marks a computed result that contradicts an engine
// invariant. It indicates a bug, never user input; the operation that raised
// it fails closed without persisting.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

func invariantf(format string, args ...any) error {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}
