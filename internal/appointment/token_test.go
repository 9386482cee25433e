package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apptAt(hour int, status Status) Appointment {
	return Appointment{
		AppointmentTime: time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Status:          status,
	}
}

func TestTokenForSequence(t *testing.T) {
	day := []Appointment{
		apptAt(9, StatusScheduled),
		apptAt(10, StatusConfirmed),
		apptAt(11, StatusScheduled),
	}

	// Tokens over the time-ordered active sequence are exactly 1..N.
	assert.Equal(t, 1, TokenFor(nil, day[0].AppointmentTime))
	assert.Equal(t, 2, TokenFor(day[:1], day[1].AppointmentTime))
	assert.Equal(t, 3, TokenFor(day[:2], day[2].AppointmentTime))
	assert.Equal(t, 4, TokenFor(day, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestTokenForExcludesCancelledAndNoShow(t *testing.T) {
	day := []Appointment{
		apptAt(9, StatusScheduled),
		apptAt(10, StatusCancelled),
		apptAt(11, StatusNoShow),
		apptAt(12, StatusCompleted),
	}

	token := TokenFor(day, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, token, "cancelled and no-show appointments must not consume tokens")
}

// Booking an earlier-timed appointment after a later one shifts the later
// tokens. That is the documented recompute-on-read behavior, not a defect.
func TestTokenForReflectsTimeOrderNotInsertionOrder(t *testing.T) {
	first := apptAt(14, StatusScheduled)

	// The 14:00 booking arrived first and was token 1 at booking time.
	assert.Equal(t, 1, TokenFor(nil, first.AppointmentTime))

	// A 9:00 booking arrives later; it slots in ahead.
	assert.Equal(t, 1, TokenFor([]Appointment{first}, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))

	// Recomputing the 14:00 token against the grown day now yields 2.
	earlier := apptAt(9, StatusScheduled)
	assert.Equal(t, 2, TokenFor([]Appointment{earlier}, first.AppointmentTime))
}

func TestQueuePosition(t *testing.T) {
	day := []Appointment{
		apptAt(9, StatusCompleted),
		apptAt(10, StatusInProgress),
		apptAt(11, StatusCancelled),
		apptAt(12, StatusScheduled),
		apptAt(13, StatusScheduled),
	}

	assert.Equal(t, 1, QueuePosition(day, day[0].AppointmentTime))
	assert.Equal(t, 2, QueuePosition(day, day[1].AppointmentTime))
	// The cancelled 11:00 does not count, so 12:00 sits third.
	assert.Equal(t, 3, QueuePosition(day, day[3].AppointmentTime))
	assert.Equal(t, 4, QueuePosition(day, day[4].AppointmentTime))
}

func TestTokensAreConsecutiveOverActiveDay(t *testing.T) {
	day := []Appointment{
		apptAt(9, StatusScheduled),
		apptAt(10, StatusCancelled),
		apptAt(11, StatusConfirmed),
		apptAt(12, StatusNoShow),
		apptAt(13, StatusScheduled),
		apptAt(14, StatusCompleted),
	}

	var positions []int
	for i := range day {
		if !day[i].Status.IsActive() {
			continue
		}
		positions = append(positions, QueuePosition(day, day[i].AppointmentTime))
	}

	require.Equal(t, ActiveCount(day), len(positions))
	for i, p := range positions {
		assert.Equal(t, i+1, p, "active tokens must be consecutive 1..N with no gaps")
	}
}

func TestActiveCount(t *testing.T) {
	deleted := time.Now()
	day := []Appointment{
		apptAt(9, StatusScheduled),
		apptAt(10, StatusCancelled),
		apptAt(11, StatusConfirmed),
	}
	day[2].DeletedAt = &deleted

	assert.Equal(t, 1, ActiveCount(day))
	assert.Equal(t, 0, ActiveCount(nil))
}
