package queue

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the once-daily materialized queue measurement for one doctor.
// Append-only: recomputation upserts the same (doctor, tenant, date) row.
type Snapshot struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	Date           time.Time `json:"date"`
	Lambda         float64   `json:"lambda"`
	Mu             float64   `json:"mu"`
	Rho            float64   `json:"rho"`
	WHours         float64   `json:"w_hours"`
	WqHours        float64   `json:"wq_hours"`
	L              float64   `json:"l"`
	Lq             float64   `json:"lq"`
	TotalCount     int       `json:"total_count"`
	CompletedCount int       `json:"completed_count"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	CreatedAt      time.Time `json:"created_at"`
}

// WaitEstimate is the advisory wait-time answer for one appointment.
type WaitEstimate struct {
	Minutes    float64 `json:"minutes"`
	Stable     bool    `json:"stable"`
	Confidence string  `json:"confidence"` // "high" when stable, "low" otherwise
	Lambda     float64 `json:"lambda"`
	Mu         float64 `json:"mu"`
	Rho        float64 `json:"rho"`
}

// Position locates one appointment in its doctor's day queue.
type Position struct {
	Position    int `json:"position"`
	QueueLength int `json:"queue_length"`
	AheadCount  int `json:"ahead_count"`
}

// Status is the live per-doctor queue summary.
type Status struct {
	CurrentToken   int     `json:"current_token"`
	NextToken      int     `json:"next_token"`
	Waiting        int     `json:"waiting"`
	AvgWaitMinutes float64 `json:"avg_wait_minutes"`
	Stable         bool    `json:"stable"`
}
