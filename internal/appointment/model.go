package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// IsActive reports whether an appointment in this status still occupies its
// time slot. Cancelled and no-show appointments free the slot.
func (s Status) IsActive() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Appointment struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	AppointmentTime time.Time
	DurationMinutes int
	Status          Status
	TokenNumber     int
	CancelledBy     *uuid.UUID
	CancelReason    *string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the half-open [start, end) range occupied by the appointment.
func (a *Appointment) Interval() Interval {
	return Interval{
		Start: a.AppointmentTime,
		End:   a.AppointmentTime.Add(time.Duration(a.DurationMinutes) * time.Minute),
	}
}

func (a *Appointment) IsDeleted() bool {
	return a.DeletedAt != nil
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect:
// [a,b) and [c,d) overlap iff a < d && c < b.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// DayWindow returns the [midnight, midnight+24h) interval containing t,
// in t's location.
func DayWindow(t time.Time) Interval {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Interval{Start: start, End: start.Add(24 * time.Hour)}
}
