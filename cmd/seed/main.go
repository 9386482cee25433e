package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/appointment-engine/internal/db"
)

// Seeds a demo schedule: a handful of doctors in one tenant, each with a week
// of back-to-back appointments in mixed lifecycle states, so the queue
// estimators have realistic history to measure.

const (
	doctorCount       = 10
	daysOfHistory     = 7
	apptsPerDoctorDay = 12
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	tenantID := uuid.New()
	if err := seedAppointments(context.Background(), pool, tenantID); err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}

	logger.Info().Str("tenant_id", tenantID.String()).Msg("seed complete")
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	for d := 0; d < doctorCount; d++ {
		doctorID := uuid.New()

		for dayOffset := -daysOfHistory; dayOffset <= 0; dayOffset++ {
			day := now.AddDate(0, 0, dayOffset)
			dayStart := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())

			for i := 0; i < apptsPerDoctorDay; i++ {
				apptTime := dayStart.Add(time.Duration(i) * 30 * time.Minute)
				status, startedAt, completedAt, cancelledBy, reason := randomLifecycle(apptTime, now)

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments (
						id, tenant_id, doctor_id, patient_id, appointment_time,
						duration_minutes, status, token_number, cancelled_by,
						cancel_reason, started_at, completed_at, created_at, updated_at
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
				`, uuid.New(), tenantID, doctorID, uuid.New(), apptTime,
					30, status, i+1, cancelledBy, reason, startedAt, completedAt)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

func randomLifecycle(apptTime, now time.Time) (status string, startedAt, completedAt *time.Time, cancelledBy *uuid.UUID, reason *string) {
	if apptTime.After(now) {
		if gofakeit.Bool() {
			return "scheduled", nil, nil, nil, nil
		}
		return "confirmed", nil, nil, nil, nil
	}

	switch gofakeit.Number(0, 9) {
	case 0:
		actor := uuid.New()
		r := gofakeit.Sentence(4)
		return "cancelled", nil, nil, &actor, &r
	case 1:
		return "no_show", nil, nil, nil, nil
	default:
		started := apptTime
		completed := apptTime.Add(time.Duration(gofakeit.Number(15, 45)) * time.Minute)
		return "completed", &started, &completed, nil, nil
	}
}
