// Package booking implements appointment scheduling for ZapGenda.
//
// It contains the slot search over the 20-minute booking grid and the
// handlers that turn extracted booking/cancellation details into calendar
// mutations and user-facing replies.
package booking

import (
	"log/slog"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// Constants for the slot search grid.
const (
	// GridMinutes is the granularity of appointment start times.
	GridMinutes = 20
	// DefaultMaxAttempts bounds the slot search to one full day at
	// 20-minute granularity.
	DefaultMaxAttempts = 48
)

// RoundUpToGrid advances t to the next 20-minute boundary (minutes 0, 20
// or 40), zeroing seconds and sub-second fields. Times already on the grid
// with no sub-minute component are returned unchanged. Rolling past minute
// 60 carries into the next hour (and day, month, year) through the
// timestamp's own arithmetic.
func RoundUpToGrid(t time.Time) time.Time {
	if t.Minute()%GridMinutes == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t
	}
	floored := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), (t.Minute()/GridMinutes)*GridMinutes, 0, 0, t.Location())
	return floored.Add(GridMinutes * time.Minute)
}

// SlotFinder searches for a conflict-free appointment slot on the booking
// grid. Output depends only on inputs; there is no hidden state.
type SlotFinder struct {
	maxAttempts int
}

// SlotFinderOption configures a SlotFinder.
type SlotFinderOption func(*SlotFinder)

// WithMaxAttempts overrides the number of grid steps tried before the
// search gives up.
func WithMaxAttempts(n int) SlotFinderOption {
	return func(f *SlotFinder) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// NewSlotFinder creates a SlotFinder with the default one-day search bound.
func NewSlotFinder(opts ...SlotFinderOption) *SlotFinder {
	f := &SlotFinder{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindNextAvailableSlot returns the first conflict-free slot of the given
// duration at or after the requested time, stepping through the 20-minute
// grid. The boolean reports whether the returned slot was verified
// conflict-free: when every attempt within the bound conflicts, the
// originally rounded requested time is returned with false and the caller
// is responsible for surfacing the soft failure.
func (f *SlotFinder) FindNextAvailableSlot(requested time.Time, durationMinutes int, busy []models.BusyInterval) (models.TimeSlot, bool) {
	duration := time.Duration(durationMinutes) * time.Minute
	start := RoundUpToGrid(requested)

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		slot := models.TimeSlot{Start: start, End: start.Add(duration)}
		if !slotConflicts(slot, busy) {
			return slot, true
		}
		start = start.Add(GridMinutes * time.Minute)
	}

	fallback := RoundUpToGrid(requested)
	slog.Warn("SlotFinder exhausted search bound, falling back to requested time",
		"requested", requested, "attempts", f.maxAttempts)
	return models.TimeSlot{Start: fallback, End: fallback.Add(duration)}, false
}

func slotConflicts(slot models.TimeSlot, busy []models.BusyInterval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}
