package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type RescheduleRequest struct {
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type TransitionRequest struct {
	Status  string  `json:"status"`
	ActorID *string `json:"actor_id,omitempty"`
	Reason  *string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	AppointmentTime time.Time  `json:"appointment_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	TokenNumber     int        `json:"token_number"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
