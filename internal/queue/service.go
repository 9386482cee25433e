package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/appointment-engine/internal/appointment"
	"github.com/clinicore/appointment-engine/internal/config"
	redisclient "github.com/clinicore/appointment-engine/internal/redis"
)

// Service answers wait-time, position, and live-status queries and owns the
// daily snapshot computation. All reads are lock-free; estimates racing a
// concurrent booking are acceptable and self-correct on the next read.
type Service struct {
	appts  appointment.Repository
	snaps  Repository
	cache  redisclient.Cache
	cfg    config.Config
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(appts appointment.Repository, snaps Repository, cache redisclient.Cache, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		appts:  appts,
		snaps:  snaps,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "queue").Logger(),
		now:    time.Now,
	}
}

// ratesFor measures arrival and service rates for the doctor's day. The
// service rate looks back RateLookbackDays from asOf; the arrival rate uses
// the day's active count. Cached under a short TTL since rates move slowly.
func (s *Service) ratesFor(ctx context.Context, tenantID, doctorID uuid.UUID, day appointment.Interval, asOf time.Time) (Rates, error) {
	key := redisclient.RatesKey(doctorID, day.Start)

	var cached Rates
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, redisclient.ErrCacheMiss) {
		s.logger.Warn().Err(err).Msg("rates cache read failed")
	}

	lookbackStart := asOf.AddDate(0, 0, -s.cfg.RateLookbackDays)
	completed, err := s.appts.CompletedCountBetween(ctx, tenantID, doctorID, lookbackStart, asOf)
	if err != nil {
		return Rates{}, fmt.Errorf("count completed in lookback: %w", err)
	}

	dayAppts, err := s.appts.ListForDoctorDay(ctx, tenantID, doctorID, day)
	if err != nil {
		return Rates{}, fmt.Errorf("load day schedule: %w", err)
	}

	rates := ComputeRates(
		appointment.ActiveCount(dayAppts),
		completed,
		s.cfg.ClinicHoursPerDay,
		s.cfg.RateLookbackDays,
		s.cfg.MinServiceRate,
	)

	if err := s.cache.Set(ctx, key, rates, s.cfg.RatesTTL); err != nil {
		s.logger.Warn().Err(err).Msg("rates cache write failed")
	}

	return rates, nil
}

// EstimateWaitTime returns the advisory wait for one appointment: the M/M/1
// in-system wait scaled by queue depth when the queue is stable, the fixed
// fallback otherwise. Never fails on an unstable queue; that is a flagged
// result, not an error.
func (s *Service) EstimateWaitTime(ctx context.Context, tenantID, appointmentID uuid.UUID) (*WaitEstimate, error) {
	appt, err := s.appts.GetByID(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	day := appointment.DayWindow(appt.AppointmentTime)
	rates, err := s.ratesFor(ctx, tenantID, appt.DoctorID, day, s.now())
	if err != nil {
		return nil, err
	}

	est := &WaitEstimate{
		Stable: rates.Stable(),
		Lambda: rates.Lambda,
		Mu:     rates.Mu,
		Rho:    rates.Rho,
	}

	metrics := MM1(rates)
	if !metrics.Stable {
		est.Minutes = s.cfg.FallbackWait.Minutes()
		est.Confidence = "low"
		return est, nil
	}

	dayAppts, err := s.appts.ListForDoctorDay(ctx, tenantID, appt.DoctorID, day)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}
	position := appointment.QueuePosition(dayAppts, appt.AppointmentTime)

	est.Minutes = ScaledWaitMinutes(metrics.WHours, position)
	est.Confidence = "high"
	return est, nil
}

// GetQueuePosition locates the appointment in the doctor's day queue.
func (s *Service) GetQueuePosition(ctx context.Context, tenantID, doctorID, appointmentID uuid.UUID, date time.Time) (*Position, error) {
	appt, err := s.appts.GetByID(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, appointment.ErrAppointmentNotFound
	}

	dayAppts, err := s.appts.ListForDoctorDay(ctx, tenantID, doctorID, appointment.DayWindow(date))
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	position := appointment.QueuePosition(dayAppts, appt.AppointmentTime)
	length := appointment.ActiveCount(dayAppts)

	if appt.Status.IsActive() && position > length {
		return nil, &appointment.InvariantError{
			Detail: fmt.Sprintf("position %d exceeds queue length %d for doctor %s", position, length, doctorID),
		}
	}

	return &Position{
		Position:    position,
		QueueLength: length,
		AheadCount:  position - 1,
	}, nil
}

// GetQueueStatus summarizes the doctor's live queue for today. Cached for a
// few seconds; booking and transition paths invalidate the entry eagerly.
func (s *Service) GetQueueStatus(ctx context.Context, tenantID, doctorID uuid.UUID) (*Status, error) {
	today := s.now()
	key := redisclient.QueueStatusKey(doctorID, today)

	var cached Status
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, redisclient.ErrCacheMiss) {
		s.logger.Warn().Err(err).Msg("queue status cache read failed")
	}

	day := appointment.DayWindow(today)
	dayAppts, err := s.appts.ListForDoctorDay(ctx, tenantID, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	status := &Status{}
	for i := range dayAppts {
		a := &dayAppts[i]
		if !a.Status.IsActive() || a.IsDeleted() {
			continue
		}
		pos := appointment.QueuePosition(dayAppts, a.AppointmentTime)
		switch a.Status {
		case appointment.StatusInProgress:
			status.CurrentToken = pos
		case appointment.StatusScheduled, appointment.StatusConfirmed:
			status.Waiting++
			if status.NextToken == 0 || pos < status.NextToken {
				status.NextToken = pos
			}
		}
	}

	rates, err := s.ratesFor(ctx, tenantID, doctorID, day, today)
	if err != nil {
		return nil, err
	}

	status.Stable = rates.Stable()
	if metrics := MM1(rates); metrics.Stable {
		status.AvgWaitMinutes = metrics.WHours * 60
	} else {
		status.AvgWaitMinutes = s.cfg.FallbackWait.Minutes()
	}

	if err := s.cache.Set(ctx, key, status, s.cfg.QueueStatusTTL); err != nil {
		s.logger.Warn().Err(err).Msg("queue status cache write failed")
	}

	return status, nil
}

// ComputeDailySnapshot materializes the day's queue metrics for a doctor.
// Idempotent: the upsert is keyed (doctor, tenant, date), so re-running for
// unchanged inputs rewrites the same row with the same values.
func (s *Service) ComputeDailySnapshot(ctx context.Context, tenantID, doctorID uuid.UUID, date time.Time) (*Snapshot, error) {
	day := appointment.DayWindow(date)

	dayAppts, err := s.appts.ListForDoctorDay(ctx, tenantID, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	completedToday := 0
	for i := range dayAppts {
		if dayAppts[i].Status == appointment.StatusCompleted && !dayAppts[i].IsDeleted() {
			completedToday++
		}
	}

	// Rates are measured as of the end of the snapshot day so recomputing a
	// past date sees the same trailing window it saw then.
	rates, err := s.ratesFor(ctx, tenantID, doctorID, day, day.End)
	if err != nil {
		return nil, err
	}
	metrics := MM1(rates)

	workStart, workEnd := s.cfg.WorkWindow(date)

	snap := &Snapshot{
		DoctorID:       doctorID,
		TenantID:       tenantID,
		Date:           day.Start,
		Lambda:         rates.Lambda,
		Mu:             rates.Mu,
		Rho:            rates.Rho,
		WHours:         metrics.WHours,
		WqHours:        metrics.WqHours,
		L:              metrics.L,
		Lq:             metrics.Lq,
		TotalCount:     appointment.ActiveCount(dayAppts),
		CompletedCount: completedToday,
		WindowStart:    workStart,
		WindowEnd:      workEnd,
	}

	if err := s.snaps.Upsert(ctx, snap); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("date", day.Start.Format("2006-01-02")).
		Float64("rho", snap.Rho).
		Msg("daily snapshot persisted")

	return snap, nil
}

// SnapshotSweep computes snapshots for every doctor with appointments on the
// given date, across tenants, for the snapshot worker.
func (s *Service) SnapshotSweep(ctx context.Context, date time.Time) error {
	doctors, err := s.appts.DoctorsWithAppointments(ctx, appointment.DayWindow(date))
	if err != nil {
		return fmt.Errorf("list doctors for snapshot sweep: %w", err)
	}

	for _, d := range doctors {
		if _, err := s.ComputeDailySnapshot(ctx, d.TenantID, d.DoctorID, date); err != nil {
			s.logger.Error().Err(err).
				Str("doctor_id", d.DoctorID.String()).
				Msg("snapshot computation failed")
		}
	}

	return nil
}
