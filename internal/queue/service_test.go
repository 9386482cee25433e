package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/appointment-engine/internal/appointment"
	"github.com/clinicore/appointment-engine/internal/config"
	redisclient "github.com/clinicore/appointment-engine/internal/redis"
)

// fakeApptRepo serves a fixed day of appointments and a preset completion
// count for the rate lookback.
type fakeApptRepo struct {
	appts          []appointment.Appointment
	completedCount int
}

func (r *fakeApptRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
	for i := range r.appts {
		a := r.appts[i]
		if a.ID == id && a.TenantID == tenantID && !a.IsDeleted() {
			return &a, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *fakeApptRepo) ListForDoctorDay(_ context.Context, tenantID, doctorID uuid.UUID, day appointment.Interval) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range r.appts {
		if a.TenantID != tenantID || a.DoctorID != doctorID || a.IsDeleted() {
			continue
		}
		if a.AppointmentTime.Before(day.Start) || !a.AppointmentTime.Before(day.End) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentTime.Before(out[j].AppointmentTime)
	})
	return out, nil
}

func (r *fakeApptRepo) CountOverlapping(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time, *uuid.UUID) (int, error) {
	return 0, nil
}

func (r *fakeApptRepo) Create(context.Context, *appointment.Appointment) error {
	return nil
}

func (r *fakeApptRepo) Reschedule(context.Context, uuid.UUID, uuid.UUID, time.Time, int, int) (*appointment.Appointment, error) {
	return nil, appointment.ErrAppointmentNotFound
}

func (r *fakeApptRepo) UpdateStatus(context.Context, uuid.UUID, uuid.UUID, appointment.Status, appointment.Status, appointment.TransitionMeta) (*appointment.Appointment, error) {
	return nil, appointment.ErrAppointmentNotFound
}

func (r *fakeApptRepo) SoftDelete(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
	return nil
}

func (r *fakeApptRepo) CompletedCountBetween(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) (int, error) {
	return r.completedCount, nil
}

func (r *fakeApptRepo) DoctorsWithAppointments(_ context.Context, day appointment.Interval) ([]appointment.DoctorDay, error) {
	seen := make(map[appointment.DoctorDay]bool)
	var out []appointment.DoctorDay
	for _, a := range r.appts {
		if a.IsDeleted() || a.AppointmentTime.Before(day.Start) || !a.AppointmentTime.Before(day.End) {
			continue
		}
		d := appointment.DoctorDay{TenantID: a.TenantID, DoctorID: a.DoctorID}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeSnapRepo records every upsert so idempotency is observable.
type fakeSnapRepo struct {
	mu      sync.Mutex
	rows    map[string]Snapshot
	upserts int
}

func newFakeSnapRepo() *fakeSnapRepo {
	return &fakeSnapRepo{rows: make(map[string]Snapshot)}
}

func snapKey(tenantID, doctorID uuid.UUID, date time.Time) string {
	return tenantID.String() + ":" + doctorID.String() + ":" + date.Format("2006-01-02")
}

func (r *fakeSnapRepo) Upsert(_ context.Context, s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.rows[snapKey(s.TenantID, s.DoctorID, s.Date)] = *s
	return nil
}

func (r *fakeSnapRepo) GetByDoctorDate(_ context.Context, tenantID, doctorID uuid.UUID, date time.Time) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[snapKey(tenantID, doctorID, date)]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &s, nil
}

// memCache is a real JSON cache without expiry, enough to observe hits.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return redisclient.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

var (
	qTenant = uuid.New()
	qDoctor = uuid.New()
	qDay    = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

func qConfig() config.Config {
	return config.Config{
		WorkStartMinutes:  9 * 60,
		WorkEndMinutes:    17 * 60,
		SlotMinutes:       30,
		ClinicHoursPerDay: 8,
		RateLookbackDays:  7,
		MinServiceRate:    0.1,
		FallbackWait:      30 * time.Minute,
		QueueStatusTTL:    15 * time.Second,
		RatesTTL:          5 * time.Minute,
	}
}

func qAppt(hour int, status appointment.Status) appointment.Appointment {
	return appointment.Appointment{
		ID:              uuid.New(),
		TenantID:        qTenant,
		DoctorID:        qDoctor,
		PatientID:       uuid.New(),
		AppointmentTime: qDay.Add(time.Duration(hour) * time.Hour),
		DurationMinutes: 30,
		Status:          status,
	}
}

func newQueueService(repo *fakeApptRepo, snaps *fakeSnapRepo) *Service {
	svc := NewService(repo, snaps, newMemCache(), qConfig(), zerolog.Nop())
	svc.now = func() time.Time { return qDay.Add(12 * time.Hour) }
	return svc
}

func TestEstimateWaitTimeStable(t *testing.T) {
	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusCompleted),
		qAppt(10, appointment.StatusInProgress),
		qAppt(11, appointment.StatusScheduled),
		qAppt(13, appointment.StatusScheduled),
	}
	// 112 completions over 7x8h: mu = 2/hr. 4 active over 8h: lambda = 0.5/hr.
	repo := &fakeApptRepo{appts: appts, completedCount: 112}
	svc := newQueueService(repo, newFakeSnapRepo())

	est, err := svc.EstimateWaitTime(context.Background(), qTenant, appts[2].ID)
	require.NoError(t, err)

	assert.True(t, est.Stable)
	assert.Equal(t, "high", est.Confidence)
	assert.InDelta(t, 0.5, est.Lambda, 1e-9)
	assert.InDelta(t, 2.0, est.Mu, 1e-9)
	assert.InDelta(t, 0.25, est.Rho, 1e-9)
	// W = 1/(2-0.5) = 40min, position 3 of 4 keeps the x1 factor.
	assert.InDelta(t, 40.0, est.Minutes, 1e-6)
}

func TestEstimateWaitTimeUnstableFallback(t *testing.T) {
	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusScheduled),
		qAppt(10, appointment.StatusScheduled),
		qAppt(11, appointment.StatusScheduled),
		qAppt(13, appointment.StatusScheduled),
	}
	// No completion history: mu floored at 0.1, lambda = 0.5, rho = 5.
	repo := &fakeApptRepo{appts: appts, completedCount: 0}
	svc := newQueueService(repo, newFakeSnapRepo())

	est, err := svc.EstimateWaitTime(context.Background(), qTenant, appts[0].ID)
	require.NoError(t, err)

	assert.False(t, est.Stable)
	assert.Equal(t, "low", est.Confidence)
	assert.InDelta(t, 30.0, est.Minutes, 1e-9, "unstable queue returns the fixed fallback")
	assert.Greater(t, est.Rho, 1.0)
}

func TestGetQueuePosition(t *testing.T) {
	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusCompleted),
		qAppt(10, appointment.StatusCancelled),
		qAppt(11, appointment.StatusConfirmed),
		qAppt(12, appointment.StatusScheduled),
	}
	repo := &fakeApptRepo{appts: appts, completedCount: 10}
	svc := newQueueService(repo, newFakeSnapRepo())

	pos, err := svc.GetQueuePosition(context.Background(), qTenant, qDoctor, appts[3].ID, qDay)
	require.NoError(t, err)

	assert.Equal(t, 3, pos.Position, "cancelled appointments do not hold a place")
	assert.Equal(t, 3, pos.QueueLength)
	assert.Equal(t, 2, pos.AheadCount)
}

func TestGetQueuePositionWrongDoctor(t *testing.T) {
	appts := []appointment.Appointment{qAppt(9, appointment.StatusScheduled)}
	repo := &fakeApptRepo{appts: appts}
	svc := newQueueService(repo, newFakeSnapRepo())

	_, err := svc.GetQueuePosition(context.Background(), qTenant, uuid.New(), appts[0].ID, qDay)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestGetQueueStatus(t *testing.T) {
	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusCompleted),
		qAppt(10, appointment.StatusInProgress),
		qAppt(11, appointment.StatusConfirmed),
		qAppt(13, appointment.StatusScheduled),
		qAppt(14, appointment.StatusCancelled),
	}
	repo := &fakeApptRepo{appts: appts, completedCount: 112}
	svc := newQueueService(repo, newFakeSnapRepo())

	status, err := svc.GetQueueStatus(context.Background(), qTenant, qDoctor)
	require.NoError(t, err)

	assert.Equal(t, 2, status.CurrentToken, "the in-progress appointment holds the floor")
	assert.Equal(t, 3, status.NextToken)
	assert.Equal(t, 2, status.Waiting)
	assert.True(t, status.Stable)
	// W = 1/(2 - 4/8) = 40 minutes.
	assert.InDelta(t, 40.0, status.AvgWaitMinutes, 1e-6)
}

func TestGetQueueStatusServedFromCache(t *testing.T) {
	appts := []appointment.Appointment{qAppt(10, appointment.StatusScheduled)}
	repo := &fakeApptRepo{appts: appts, completedCount: 112}
	svc := newQueueService(repo, newFakeSnapRepo())

	first, err := svc.GetQueueStatus(context.Background(), qTenant, qDoctor)
	require.NoError(t, err)

	// Mutating the store without invalidation: the cached answer survives.
	repo.appts = append(repo.appts, qAppt(11, appointment.StatusScheduled))

	second, err := svc.GetQueueStatus(context.Background(), qTenant, qDoctor)
	require.NoError(t, err)
	assert.Equal(t, first.Waiting, second.Waiting)
}

func TestComputeDailySnapshotIdempotent(t *testing.T) {
	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusCompleted),
		qAppt(10, appointment.StatusCompleted),
		qAppt(11, appointment.StatusScheduled),
		qAppt(12, appointment.StatusNoShow),
	}
	repo := &fakeApptRepo{appts: appts, completedCount: 112}
	snaps := newFakeSnapRepo()
	svc := newQueueService(repo, snaps)
	ctx := context.Background()

	first, err := svc.ComputeDailySnapshot(ctx, qTenant, qDoctor, qDay)
	require.NoError(t, err)

	second, err := svc.ComputeDailySnapshot(ctx, qTenant, qDoctor, qDay)
	require.NoError(t, err)

	assert.Len(t, snaps.rows, 1, "recomputation must not create a second row")
	assert.Equal(t, 2, snaps.upserts)
	assert.Equal(t, *first, *second, "unchanged inputs must reproduce identical values")

	assert.Equal(t, 3, first.TotalCount, "no-show excluded from the active total")
	assert.Equal(t, 2, first.CompletedCount)
	assert.InDelta(t, 3.0/8.0, first.Lambda, 1e-9)
	assert.InDelta(t, 2.0, first.Mu, 1e-9)
	assert.True(t, first.Rho < 1)
	assert.Positive(t, first.WHours)
}

func TestSnapshotSweepCoversDoctors(t *testing.T) {
	otherDoctor := uuid.New()
	other := qAppt(10, appointment.StatusScheduled)
	other.DoctorID = otherDoctor

	appts := []appointment.Appointment{
		qAppt(9, appointment.StatusScheduled),
		other,
	}
	repo := &fakeApptRepo{appts: appts, completedCount: 20}
	snaps := newFakeSnapRepo()
	svc := newQueueService(repo, snaps)

	require.NoError(t, svc.SnapshotSweep(context.Background(), qDay))
	assert.Len(t, snaps.rows, 2, "one snapshot per doctor with appointments")
}
