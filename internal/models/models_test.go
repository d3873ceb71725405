package models

import (
	"testing"
	"time"
)

func TestIsValidIntent(t *testing.T) {
	valid := []Intent{IntentActivate, IntentBook, IntentCancel, IntentFAQ, IntentDeactivate, IntentOther}
	for _, i := range valid {
		if !IsValidIntent(i) {
			t.Errorf("expected %q to be valid", i)
		}
	}
	if IsValidIntent(Intent("agendamento")) {
		t.Error("expected unknown intent to be invalid")
	}
	if IsValidIntent(Intent("")) {
		t.Error("expected empty intent to be invalid")
	}
}

func TestTimeSlotValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	if err := (TimeSlot{Start: start, End: start.Add(40 * time.Minute)}).Validate(); err != nil {
		t.Errorf("expected valid slot, got %v", err)
	}
	if err := (TimeSlot{Start: start, End: start}).Validate(); err != ErrInvalidSlot {
		t.Errorf("expected ErrInvalidSlot for zero-length slot, got %v", err)
	}
	if err := (TimeSlot{Start: start, End: start.Add(-time.Minute)}).Validate(); err != ErrInvalidSlot {
		t.Errorf("expected ErrInvalidSlot for inverted slot, got %v", err)
	}
}

func TestBookingRequestValidate(t *testing.T) {
	if err := (BookingRequest{Service: "corte", DurationMinutes: 40}).Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
	if err := (BookingRequest{DurationMinutes: 40}).Validate(); err != ErrMissingService {
		t.Errorf("expected ErrMissingService, got %v", err)
	}
	if err := (BookingRequest{Service: "corte"}).Validate(); err != ErrInvalidDuration {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestTimeSlotOverlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2025, 1, 1, h, m, 0, 0, time.UTC)
	}

	cases := []struct {
		name string
		slot TimeSlot
		busy BusyInterval
		want bool
	}{
		{"identical", TimeSlot{at(14, 0), at(14, 40)}, BusyInterval{at(14, 0), at(14, 40)}, true},
		{"partial overlap", TimeSlot{at(14, 20), at(15, 0)}, BusyInterval{at(14, 0), at(14, 40)}, true},
		{"contained", TimeSlot{at(14, 10), at(14, 30)}, BusyInterval{at(14, 0), at(14, 40)}, true},
		{"touching end", TimeSlot{at(14, 40), at(15, 20)}, BusyInterval{at(14, 0), at(14, 40)}, false},
		{"touching start", TimeSlot{at(13, 20), at(14, 0)}, BusyInterval{at(14, 0), at(14, 40)}, false},
		{"disjoint", TimeSlot{at(16, 0), at(16, 40)}, BusyInterval{at(14, 0), at(14, 40)}, false},
	}

	for _, tc := range cases {
		if got := tc.slot.Overlaps(tc.busy); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}
