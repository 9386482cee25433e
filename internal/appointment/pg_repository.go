package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, tenant_id, doctor_id, patient_id, appointment_time, duration_minutes,
	status, token_number, cancelled_by, cancel_reason, started_at, completed_at,
	deleted_at, created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.DoctorID,
		&a.PatientID,
		&a.AppointmentTime,
		&a.DurationMinutes,
		&a.Status,
		&a.TokenNumber,
		&a.CancelledBy,
		&a.CancelReason,
		&a.StartedAt,
		&a.CompletedAt,
		&a.DeletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID)
	return scanAppointment(row)
}

func (r *PgRepository) ListForDoctorDay(ctx context.Context, tenantID, doctorID uuid.UUID, day Interval) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND doctor_id = $2
		  AND appointment_time >= $3
		  AND appointment_time < $4
		  AND deleted_at IS NULL
		ORDER BY appointment_time ASC
	`, tenantID, doctorID, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountOverlapping(ctx context.Context, tenantID, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (int, error) {
	var count int

	// Half-open overlap: existing.start < end AND existing.end > start.
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE tenant_id = $1
		  AND doctor_id = $2
		  AND status NOT IN ('cancelled', 'no_show')
		  AND deleted_at IS NULL
		  AND appointment_time < $4
		  AND appointment_time + make_interval(mins => duration_minutes) > $3
		  AND ($5::uuid IS NULL OR id <> $5)
	`, tenantID, doctorID, start, end, excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overlapping: %w", err)
	}

	return count, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, tenant_id, doctor_id, patient_id, appointment_time,
			duration_minutes, status, token_number, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.TenantID, a.DoctorID, a.PatientID, a.AppointmentTime,
		a.DurationMinutes, a.Status, a.TokenNumber)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	*a = *created
	return nil
}

func (r *PgRepository) Reschedule(ctx context.Context, tenantID, id uuid.UUID, newTime time.Time, newDuration, newToken int) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_time = $3,
		    duration_minutes = $4,
		    token_number = $5,
		    updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING `+appointmentColumns+`
	`, id, tenantID, newTime, newDuration, newToken)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, meta TransitionMeta) (*Appointment, error) {
	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $4,
		    cancelled_by = CASE WHEN $4 = 'cancelled' THEN $5::uuid ELSE cancelled_by END,
		    cancel_reason = CASE WHEN $4 = 'cancelled' THEN $6 ELSE cancel_reason END,
		    started_at = CASE WHEN $4 = 'in_progress' THEN $7::timestamptz ELSE started_at END,
		    completed_at = CASE WHEN $4 = 'completed' THEN $7::timestamptz ELSE completed_at END,
		    updated_at = $7
		WHERE id = $1
		  AND tenant_id = $2
		  AND status = $3
		  AND deleted_at IS NULL
		RETURNING `+appointmentColumns+`
	`, id, tenantID, from, to, meta.ActorID, meta.Reason, now)

	return scanAppointment(row)
}

func (r *PgRepository) SoftDelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET deleted_at = $3,
		    updated_at = $3
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID, now)
	if err != nil {
		return fmt.Errorf("soft delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) CompletedCountBetween(ctx context.Context, tenantID, doctorID uuid.UUID, from, to time.Time) (int, error) {
	var count int

	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE tenant_id = $1
		  AND doctor_id = $2
		  AND status = 'completed'
		  AND completed_at >= $3
		  AND completed_at < $4
		  AND deleted_at IS NULL
	`, tenantID, doctorID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}

	return count, nil
}

func (r *PgRepository) DoctorsWithAppointments(ctx context.Context, day Interval) ([]DoctorDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT tenant_id, doctor_id
		FROM appointments
		WHERE appointment_time >= $1
		  AND appointment_time < $2
		  AND deleted_at IS NULL
	`, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []DoctorDay
	for rows.Next() {
		var d DoctorDay
		if err := rows.Scan(&d.TenantID, &d.DoctorID); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return doctors, nil
}
