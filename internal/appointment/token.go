package appointment

import "time"

// Tokens are per-doctor, per-day sequence numbers ordered by appointment time,
// counting only active appointments. They are recomputed from the current
// time-ordering, so booking an earlier-timed appointment after a later one
// shifts the later tokens. Callers must treat a token as a live position in
// the day's schedule, not a permanent identifier.

// TokenFor returns the token a booking at proposedTime would receive given
// the day's appointments: one plus the number of active appointments at or
// before the proposed time.
func TokenFor(appts []Appointment, proposedTime time.Time) int {
	token := 1
	for i := range appts {
		a := &appts[i]
		if !a.Status.IsActive() || a.IsDeleted() {
			continue
		}
		if !a.AppointmentTime.After(proposedTime) {
			token++
		}
	}
	return token
}

// QueuePosition returns the 1-based position of an appointment at apptTime:
// one plus the number of active appointments strictly earlier that day.
func QueuePosition(appts []Appointment, apptTime time.Time) int {
	pos := 1
	for i := range appts {
		a := &appts[i]
		if !a.Status.IsActive() || a.IsDeleted() {
			continue
		}
		if a.AppointmentTime.Before(apptTime) {
			pos++
		}
	}
	return pos
}

// ActiveCount counts the non-cancelled, non-no-show, non-deleted appointments.
func ActiveCount(appts []Appointment) int {
	n := 0
	for i := range appts {
		a := &appts[i]
		if a.Status.IsActive() && !a.IsDeleted() {
			n++
		}
	}
	return n
}
