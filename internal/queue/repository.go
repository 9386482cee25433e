package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSnapshotNotFound = errors.New("queue snapshot not found")

// Repository persists daily snapshots. Upsert keyed by (doctor, tenant, date)
// keeps recomputation idempotent: same inputs, one row.
type Repository interface {
	Upsert(ctx context.Context, s *Snapshot) error
	GetByDoctorDate(ctx context.Context, tenantID, doctorID uuid.UUID, date time.Time) (*Snapshot, error)
}
