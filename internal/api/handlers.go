package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/appointment-engine/internal/appointment"
	"github.com/clinicore/appointment-engine/internal/queue"
)

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		AppointmentTime: a.AppointmentTime,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		TokenNumber:     a.TokenNumber,
		StartedAt:       a.StartedAt,
		CompletedAt:     a.CompletedAt,
	}
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateParams{
			TenantID:        GetTenantID(r.Context()),
			DoctorID:        doctorID,
			PatientID:       patientID,
			AppointmentTime: req.AppointmentTime,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), GetTenantID(r.Context()), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), GetTenantID(r.Context()), id, req.AppointmentTime, req.DurationMinutes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var actorID *uuid.UUID
		if req.ActorID != nil {
			parsed, err := uuid.Parse(*req.ActorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
				return
			}
			actorID = &parsed
		}

		appt, err := svc.TransitionAppointment(r.Context(), GetTenantID(r.Context()), id,
			appointment.Status(req.Status), actorID, req.Reason)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), GetTenantID(r.Context()), id); err != nil {
			handleAppointmentError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		slotMinutes := 0
		if raw := r.URL.Query().Get("duration"); raw != "" {
			d, err := time.ParseDuration(raw + "m")
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be minutes")
				return
			}
			slotMinutes = int(d.Minutes())
		}

		slots, err := svc.ListAvailableSlots(r.Context(), GetTenantID(r.Context()), doctorID, date, slotMinutes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{Start: s.Start, End: s.End, Label: s.Label})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func waitEstimateHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		est, err := svc.EstimateWaitTime(r.Context(), GetTenantID(r.Context()), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, est)
	}
}

func queuePositionHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		pos, err := svc.GetQueuePosition(r.Context(), GetTenantID(r.Context()), doctorID, id, date)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, pos)
	}
}

func queueStatusHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		status, err := svc.GetQueueStatus(r.Context(), GetTenantID(r.Context()), doctorID)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func computeSnapshotHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(w, r, "doctorID")
		if !ok {
			return
		}

		date, ok := queryDate(w, r)
		if !ok {
			return
		}

		snap, err := svc.ComputeDailySnapshot(r.Context(), GetTenantID(r.Context()), doctorID, date)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	var inv *appointment.InvariantError

	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrTimeConflict):
		writeError(w, http.StatusConflict, "time_conflict", err.Error())
	case errors.Is(err, appointment.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "doctor schedule is being modified, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.As(err, &inv):
		writeError(w, http.StatusInternalServerError, "invariant_violation", "internal invariant violated, nothing was persisted")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
