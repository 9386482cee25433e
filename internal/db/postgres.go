package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the engine's tables if they do not exist. The unique
// key on queue_snapshots backs the idempotent snapshot upsert.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id uuid PRIMARY KEY,
			tenant_id uuid NOT NULL,
			doctor_id uuid NOT NULL,
			patient_id uuid NOT NULL,
			appointment_time timestamptz NOT NULL,
			duration_minutes int NOT NULL CHECK (duration_minutes > 0),
			status text NOT NULL,
			token_number int NOT NULL CHECK (token_number >= 1),
			cancelled_by uuid,
			cancel_reason text,
			started_at timestamptz,
			completed_at timestamptz,
			deleted_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_doctor_day
			ON appointments (tenant_id, doctor_id, appointment_time)
			WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_completed
			ON appointments (tenant_id, doctor_id, completed_at)
			WHERE status = 'completed' AND deleted_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS queue_snapshots (
			doctor_id uuid NOT NULL,
			tenant_id uuid NOT NULL,
			snapshot_date timestamptz NOT NULL,
			lambda double precision NOT NULL,
			mu double precision NOT NULL,
			rho double precision NOT NULL,
			w_hours double precision NOT NULL,
			wq_hours double precision NOT NULL,
			l_count double precision NOT NULL,
			lq_count double precision NOT NULL,
			total_count int NOT NULL,
			completed_count int NOT NULL,
			window_start timestamptz NOT NULL,
			window_end timestamptz NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (doctor_id, tenant_id, snapshot_date)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
