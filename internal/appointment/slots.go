package appointment

import (
	"sort"
	"time"
)

// Slot is a free, bookable interval of the requested duration.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

// EnumerateSlots sweeps the working window [workStart, workEnd) left to right
// over the sorted busy intervals and emits every free slot of the requested
// duration. Slots never overlap a busy interval or each other. When now falls
// on the same day as the window, slots that do not start strictly after now
// are dropped.
func EnumerateSlots(workStart, workEnd time.Time, busy []Interval, duration time.Duration, now time.Time) []Slot {
	slots := []Slot{}
	if duration <= 0 || !workStart.Before(workEnd) {
		return slots
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	sameDay := now.Year() == workStart.Year() && now.YearDay() == workStart.YearDay()

	emit := func(start time.Time) {
		if sameDay && !start.After(now) {
			return
		}
		slots = append(slots, Slot{
			Start: start,
			End:   start.Add(duration),
			Label: start.Format("03:04 PM"),
		})
	}

	cursor := workStart
	for _, iv := range sorted {
		for !cursor.Add(duration).After(iv.Start) {
			emit(cursor)
			cursor = cursor.Add(duration)
		}
		if cursor.Before(iv.End) {
			cursor = iv.End
		}
	}

	for !cursor.Add(duration).After(workEnd) {
		emit(cursor)
		cursor = cursor.Add(duration)
	}

	return slots
}

// BusyIntervals extracts the occupied intervals of the active appointments.
func BusyIntervals(appts []Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		if !a.Status.IsActive() || a.IsDeleted() {
			continue
		}
		out = append(out, a.Interval())
	}
	return out
}
