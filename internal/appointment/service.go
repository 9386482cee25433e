package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/appointment-engine/internal/config"
	redisclient "github.com/clinicore/appointment-engine/internal/redis"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cache  redisclient.Cache
	cfg    config.Config
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cache redisclient.Cache, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "appointment").Logger(),
		now:    time.Now,
	}
}

type CreateParams struct {
	TenantID        uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	AppointmentTime time.Time
	DurationMinutes int
}

// CreateAppointment books a new appointment. The conflict check, token
// computation, and insert run under the doctor-day schedule lock so two
// concurrent bookings for overlapping times cannot both commit.
func (s *Service) CreateAppointment(ctx context.Context, p CreateParams) (*Appointment, error) {
	if p.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	start := p.AppointmentTime
	end := start.Add(time.Duration(p.DurationMinutes) * time.Minute)
	day := DayWindow(start)

	var created *Appointment

	err := s.locker.WithScheduleLock(ctx, p.DoctorID, start, func(lockCtx context.Context) error {
		conflicts, err := s.repo.CountOverlapping(lockCtx, p.TenantID, p.DoctorID, start, end, nil)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflicts > 0 {
			return ErrTimeConflict
		}

		dayAppts, err := s.repo.ListForDoctorDay(lockCtx, p.TenantID, p.DoctorID, day)
		if err != nil {
			return fmt.Errorf("load day schedule: %w", err)
		}

		token := TokenFor(dayAppts, start)
		if token < 1 {
			return invariantf("computed token %d for doctor %s", token, p.DoctorID)
		}

		appt := &Appointment{
			ID:              uuid.New(),
			TenantID:        p.TenantID,
			DoctorID:        p.DoctorID,
			PatientID:       p.PatientID,
			AppointmentTime: start,
			DurationMinutes: p.DurationMinutes,
			Status:          StatusScheduled,
			TokenNumber:     token,
		}
		if err := s.repo.Create(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.invalidateQueueCaches(ctx, p.DoctorID, start)

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", p.DoctorID.String()).
		Int("token", created.TokenNumber).
		Time("time", start).
		Msg("appointment booked")

	return created, nil
}

// RescheduleAppointment moves an existing appointment to a new time and
// duration, re-validating overlap against every other active appointment
// under the same lock discipline as booking.
func (s *Service) RescheduleAppointment(ctx context.Context, tenantID, id uuid.UUID, newTime time.Time, newDurationMinutes int) (*Appointment, error) {
	if newDurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	appt, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	start := newTime
	end := start.Add(time.Duration(newDurationMinutes) * time.Minute)
	day := DayWindow(start)

	var updated *Appointment

	err = s.locker.WithScheduleLock(ctx, appt.DoctorID, start, func(lockCtx context.Context) error {
		excludeID := appt.ID
		conflicts, err := s.repo.CountOverlapping(lockCtx, tenantID, appt.DoctorID, start, end, &excludeID)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflicts > 0 {
			return ErrTimeConflict
		}

		dayAppts, err := s.repo.ListForDoctorDay(lockCtx, tenantID, appt.DoctorID, day)
		if err != nil {
			return fmt.Errorf("load day schedule: %w", err)
		}

		// Exclude the appointment itself from its own token count.
		others := make([]Appointment, 0, len(dayAppts))
		for _, a := range dayAppts {
			if a.ID != appt.ID {
				others = append(others, a)
			}
		}
		token := TokenFor(others, start)

		updated, err = s.repo.Reschedule(lockCtx, tenantID, appt.ID, start, newDurationMinutes, token)
		if err != nil {
			return fmt.Errorf("reschedule: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.invalidateQueueCaches(ctx, appt.DoctorID, appt.AppointmentTime)
	if !DayWindow(appt.AppointmentTime).Start.Equal(day.Start) {
		s.invalidateQueueCaches(ctx, appt.DoctorID, start)
	}

	return updated, nil
}

// TransitionAppointment applies a lifecycle edge. The persisted update is a
// compare-and-set guarded on the previous status, so a racing transition
// loses cleanly instead of overwriting.
func (s *Service) TransitionAppointment(ctx context.Context, tenantID, id uuid.UUID, target Status, actorID *uuid.UUID, reason *string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	meta := TransitionMeta{ActorID: actorID, Reason: reason, Now: s.now()}

	// Validate on an in-memory copy first so a bad edge never reaches the store.
	check := *appt
	if err := ApplyTransition(&check, target, meta); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, tenantID, id, appt.Status, target, meta)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row exists but the status guard failed: someone transitioned first.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	s.invalidateQueueCaches(ctx, updated.DoctorID, updated.AppointmentTime)

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(target)).
		Msg("appointment transitioned")

	return updated, nil
}

// DeleteAppointment tombstones the record. It stays in the store but is
// excluded from conflict, slot, and queue computations from now on.
func (s *Service) DeleteAppointment(ctx context.Context, tenantID, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, tenantID, id, s.now()); err != nil {
		return err
	}

	s.invalidateQueueCaches(ctx, appt.DoctorID, appt.AppointmentTime)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// ListAvailableSlots enumerates the free slots of the requested duration for
// a doctor's day. A zero slotMinutes falls back to the configured default.
// Reads take no lock; a returned slot can be lost to a concurrent booking and
// is re-validated when the booking is actually attempted.
func (s *Service) ListAvailableSlots(ctx context.Context, tenantID, doctorID uuid.UUID, date time.Time, slotMinutes int) ([]Slot, error) {
	if slotMinutes == 0 {
		slotMinutes = s.cfg.SlotMinutes
	}
	if slotMinutes < 0 {
		return nil, ErrInvalidDuration
	}

	appts, err := s.repo.ListForDoctorDay(ctx, tenantID, doctorID, DayWindow(date))
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	workStart, workEnd := s.cfg.WorkWindow(date)
	busy := BusyIntervals(appts)

	return EnumerateSlots(workStart, workEnd, busy, time.Duration(slotMinutes)*time.Minute, s.now()), nil
}

// invalidateQueueCaches drops the cached queue status and rates for the
// doctor's day. Best effort: the entries carry short TTLs and expire on
// their own if the delete fails.
func (s *Service) invalidateQueueCaches(ctx context.Context, doctorID uuid.UUID, day time.Time) {
	keys := []string{
		redisclient.QueueStatusKey(doctorID, day),
		redisclient.RatesKey(doctorID, day),
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("queue cache invalidation failed")
	}
}
