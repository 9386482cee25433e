package queue

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

func (r *PgRepository) Upsert(ctx context.Context, s *Snapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_snapshots (
			doctor_id, tenant_id, snapshot_date, lambda, mu, rho,
			w_hours, wq_hours, l_count, lq_count, total_count, completed_count,
			window_start, window_end, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (doctor_id, tenant_id, snapshot_date) DO UPDATE SET
			lambda = EXCLUDED.lambda,
			mu = EXCLUDED.mu,
			rho = EXCLUDED.rho,
			w_hours = EXCLUDED.w_hours,
			wq_hours = EXCLUDED.wq_hours,
			l_count = EXCLUDED.l_count,
			lq_count = EXCLUDED.lq_count,
			total_count = EXCLUDED.total_count,
			completed_count = EXCLUDED.completed_count,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end
	`, s.DoctorID, s.TenantID, s.Date, s.Lambda, s.Mu, s.Rho,
		s.WHours, s.WqHours, s.L, s.Lq, s.TotalCount, s.CompletedCount,
		s.WindowStart, s.WindowEnd)
	if err != nil {
		return fmt.Errorf("upsert queue snapshot: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByDoctorDate(ctx context.Context, tenantID, doctorID uuid.UUID, date time.Time) (*Snapshot, error) {
	var s Snapshot

	err := r.pool.QueryRow(ctx, `
		SELECT doctor_id, tenant_id, snapshot_date, lambda, mu, rho,
		       w_hours, wq_hours, l_count, lq_count, total_count, completed_count,
		       window_start, window_end, created_at
		FROM queue_snapshots
		WHERE tenant_id = $1 AND doctor_id = $2 AND snapshot_date = $3
	`, tenantID, doctorID, date).Scan(
		&s.DoctorID,
		&s.TenantID,
		&s.Date,
		&s.Lambda,
		&s.Mu,
		&s.Rho,
		&s.WHours,
		&s.WqHours,
		&s.L,
		&s.Lq,
		&s.TotalCount,
		&s.CompletedCount,
		&s.WindowStart,
		&s.WindowEnd,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	return &s, nil
}
