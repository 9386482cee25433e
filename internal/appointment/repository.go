package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all record-store interactions needed by the engine.
// Implementations must scope every query by tenant and exclude tombstoned
// rows (deleted_at set) from all reads.
type Repository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)

	// ListForDoctorDay returns all non-deleted appointments for the doctor
	// whose appointment_time falls inside day, any status, ordered by time.
	ListForDoctorDay(ctx context.Context, tenantID, doctorID uuid.UUID, day Interval) ([]Appointment, error)

	// CountOverlapping counts active appointments for the doctor whose
	// interval intersects [start, end). excludeID, when non-nil, skips one
	// appointment so an update can be validated against its own record.
	CountOverlapping(ctx context.Context, tenantID, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (int, error)

	Create(ctx context.Context, a *Appointment) error

	// Reschedule moves an appointment to a new time/duration and records the
	// token recomputed for the new time.
	Reschedule(ctx context.Context, tenantID, id uuid.UUID, newTime time.Time, newDuration, newToken int) (*Appointment, error)

	// UpdateStatus applies a transition with a compare-and-set guard on the
	// previous status, setting any side fields carried by meta. It returns
	// ErrAppointmentNotFound when no row matched the (id, from) pair.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, meta TransitionMeta) (*Appointment, error)

	// SoftDelete tombstones the appointment. Tombstoned rows stay in the
	// store but vanish from every engine computation.
	SoftDelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error

	// CompletedCountBetween counts appointments whose completed_at falls in
	// [from, to), used for service-rate estimation.
	CompletedCountBetween(ctx context.Context, tenantID, doctorID uuid.UUID, from, to time.Time) (int, error)

	// DoctorsWithAppointments lists the distinct (tenant, doctor) pairs having
	// at least one non-deleted appointment inside day, for snapshot sweeps.
	DoctorsWithAppointments(ctx context.Context, day Interval) ([]DoctorDay, error)
}

// DoctorDay identifies one doctor's schedule within a tenant.
type DoctorDay struct {
	TenantID uuid.UUID
	DoctorID uuid.UUID
}
