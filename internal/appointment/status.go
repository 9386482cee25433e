package appointment

import (
	"time"

	"github.com/google/uuid"
)

// allowedTransitions is the lifecycle edge table. Any (from, to) pair not
// present here is rejected.
var allowedTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from→to is an allowed lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionMeta carries the side fields a transition may set.
type TransitionMeta struct {
	ActorID *uuid.UUID
	Reason  *string
	Now     time.Time
}

// ApplyTransition validates the edge and mutates the appointment in place.
// It does not persist; the repository applies the same change with a
// compare-and-set update guarded on the previous status.
func ApplyTransition(a *Appointment, target Status, meta TransitionMeta) error {
	if a.IsDeleted() {
		return ErrAppointmentNotFound
	}
	if !CanTransition(a.Status, target) {
		return ErrInvalidTransition
	}

	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch target {
	case StatusCancelled:
		a.CancelledBy = meta.ActorID
		a.CancelReason = meta.Reason
	case StatusInProgress:
		t := now
		a.StartedAt = &t
	case StatusCompleted:
		t := now
		a.CompletedAt = &t
	}

	a.Status = target
	a.UpdatedAt = now
	return nil
}
