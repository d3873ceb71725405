package booking

import (
	"testing"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 1, h, m, 0, 0, time.UTC)
}

func TestRoundUpToGrid(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{at(10, 5), at(10, 20)},
		{at(10, 20), at(10, 20)},
		{at(10, 35), at(10, 40)},
		{at(10, 45), at(11, 0)},
		{at(10, 0), at(10, 0)},
	}
	for _, tc := range cases {
		if got := RoundUpToGrid(tc.in); !got.Equal(tc.want) {
			t.Errorf("RoundUpToGrid(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRoundUpToGridZeroesSeconds(t *testing.T) {
	in := time.Date(2025, 1, 1, 10, 20, 30, 500, time.UTC)
	got := RoundUpToGrid(in)
	if got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("expected zeroed sub-minute fields, got %v", got)
	}
	if got.Before(in) {
		t.Errorf("RoundUpToGrid must never go backwards: %v < %v", got, in)
	}
	if got.Minute()%GridMinutes != 0 {
		t.Errorf("result minute %d not on grid", got.Minute())
	}
}

func TestRoundUpToGridRollsIntoNextDay(t *testing.T) {
	in := time.Date(2025, 1, 31, 23, 55, 0, 0, time.UTC)
	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := RoundUpToGrid(in); !got.Equal(want) {
		t.Errorf("RoundUpToGrid(%v) = %v, want %v", in, got, want)
	}
}

func TestFindNextAvailableSlotNoConflict(t *testing.T) {
	f := NewSlotFinder()
	slot, ok := f.FindNextAvailableSlot(at(10, 5), 40, nil)
	if !ok {
		t.Fatal("expected conflict-free slot")
	}
	if !slot.Start.Equal(at(10, 20)) || !slot.End.Equal(at(11, 0)) {
		t.Errorf("got slot %v–%v, want 10:20–11:00", slot.Start, slot.End)
	}
}

func TestFindNextAvailableSlotWithConflict(t *testing.T) {
	f := NewSlotFinder()
	busy := []models.BusyInterval{{Start: at(14, 0), End: at(14, 40)}}

	slot, ok := f.FindNextAvailableSlot(at(14, 0), 40, busy)
	if !ok {
		t.Fatal("expected conflict-free slot")
	}
	if !slot.Start.Equal(at(14, 40)) {
		t.Errorf("got start %v, want 14:40", slot.Start)
	}
}

func TestFindNextAvailableSlotTouchingEndpointsDoNotConflict(t *testing.T) {
	f := NewSlotFinder()
	busy := []models.BusyInterval{
		{Start: at(13, 20), End: at(14, 0)},
		{Start: at(14, 40), End: at(15, 20)},
	}

	slot, ok := f.FindNextAvailableSlot(at(14, 0), 40, busy)
	if !ok || !slot.Start.Equal(at(14, 0)) {
		t.Errorf("slot flanked by touching intervals should be free, got %v ok=%v", slot.Start, ok)
	}
}

func TestFindNextAvailableSlotSkipsMultipleConflicts(t *testing.T) {
	f := NewSlotFinder()
	busy := []models.BusyInterval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(10, 0), End: at(10, 40)},
	}

	slot, ok := f.FindNextAvailableSlot(at(9, 10), 20, busy)
	if !ok {
		t.Fatal("expected conflict-free slot")
	}
	if !slot.Start.Equal(at(10, 40)) {
		t.Errorf("got start %v, want 10:40", slot.Start)
	}
}

func TestFindNextAvailableSlotBoundedFallback(t *testing.T) {
	f := NewSlotFinder()
	// One interval covering the whole search window: every attempt conflicts.
	busy := []models.BusyInterval{{Start: at(0, 0), End: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)}}

	slot, ok := f.FindNextAvailableSlot(at(10, 5), 40, busy)
	if ok {
		t.Fatal("expected fallback result")
	}
	if !slot.Start.Equal(at(10, 20)) {
		t.Errorf("fallback should return originally rounded time, got %v", slot.Start)
	}
}

func TestFindNextAvailableSlotCustomBound(t *testing.T) {
	f := NewSlotFinder(WithMaxAttempts(2))
	busy := []models.BusyInterval{{Start: at(10, 0), End: at(12, 0)}}

	// 10:20 and 10:40 both conflict; with a bound of 2 the search must fall
	// back instead of reaching the free 12:00 slot.
	slot, ok := f.FindNextAvailableSlot(at(10, 5), 40, busy)
	if ok {
		t.Fatal("expected fallback with reduced bound")
	}
	if !slot.Start.Equal(at(10, 20)) {
		t.Errorf("fallback start = %v, want 10:20", slot.Start)
	}
}

func TestFindNextAvailableSlotDeterministic(t *testing.T) {
	f := NewSlotFinder()
	busy := []models.BusyInterval{{Start: at(14, 0), End: at(14, 40)}}

	first, _ := f.FindNextAvailableSlot(at(14, 0), 40, busy)
	second, _ := f.FindNextAvailableSlot(at(14, 0), 40, busy)
	if !first.Start.Equal(second.Start) || !first.End.Equal(second.End) {
		t.Errorf("same inputs produced different slots: %v vs %v", first, second)
	}
}
