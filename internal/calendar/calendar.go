// Package calendar provides the calendar gateway used to check availability
// and persist appointments.
//
// The core only depends on the Gateway interface; the Google Calendar
// implementation lives alongside it.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// ErrUnavailable is returned by the Unavailable gateway.
var ErrUnavailable = errors.New("calendar gateway unavailable")

// Gateway is the calendar collaborator contract consumed by the booking
// handlers. ListBusyIntervals failures must not crash the slot search; the
// caller degrades to an unchecked slot.
type Gateway interface {
	// ListBusyIntervals returns the occupied half-open intervals between
	// dayStart and dayEnd.
	ListBusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]models.BusyInterval, error)

	// CreateEvent persists an appointment and returns the created event ID.
	CreateEvent(ctx context.Context, summary string, slot models.TimeSlot, description string) (string, error)

	// CancelEvent removes an event by ID.
	CancelEvent(ctx context.Context, eventID string) error
}

// Unavailable is the gateway used when no calendar credentials are
// configured. Every operation fails, which the booking handlers absorb by
// degrading gracefully.
type Unavailable struct{}

func (Unavailable) ListBusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]models.BusyInterval, error) {
	return nil, ErrUnavailable
}

func (Unavailable) CreateEvent(ctx context.Context, summary string, slot models.TimeSlot, description string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) CancelEvent(ctx context.Context, eventID string) error {
	return ErrUnavailable
}
