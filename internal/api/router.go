package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/appointment-engine/internal/appointment"
	"github.com/clinicore/appointment-engine/internal/queue"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Queue        *queue.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Engine endpoints, all tenant-scoped
	r.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/transition", transitionAppointmentHandler(cfg.Appointments))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}/wait-estimate", waitEstimateHandler(cfg.Queue))
		r.Get("/appointments/{id}/queue-position", queuePositionHandler(cfg.Queue))

		r.Get("/doctors/{doctorID}/slots", listSlotsHandler(cfg.Appointments))
		r.Get("/doctors/{doctorID}/queue-status", queueStatusHandler(cfg.Queue))
		r.Post("/doctors/{doctorID}/snapshots", computeSnapshotHandler(cfg.Queue))
	})

	return r
}
