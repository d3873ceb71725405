package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/zapgenda/zapgenda/internal/models"
)

// Constants for the Google Calendar gateway.
const (
	// DefaultCalendarID targets the authenticated account's primary calendar.
	DefaultCalendarID = "primary"
	// DefaultTimezone is the shop's timezone, used on created events.
	DefaultTimezone = "America/Sao_Paulo"
)

// Opts holds configuration options for the Google Calendar gateway.
type Opts struct {
	CalendarID      string
	Timezone        string
	CredentialsFile string
	CredentialsJSON []byte
}

// Option defines a configuration option for the Google Calendar gateway.
type Option func(*Opts)

// WithCalendarID sets the target calendar (defaults to "primary").
func WithCalendarID(id string) Option {
	return func(o *Opts) { o.CalendarID = id }
}

// WithTimezone sets the timezone stamped on created events.
func WithTimezone(tz string) Option {
	return func(o *Opts) { o.Timezone = tz }
}

// WithCredentialsFile points at a service-account credentials file.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// WithCredentialsJSON supplies credentials directly, e.g. from the
// GOOGLE_CREDENTIALS_JSON environment variable.
func WithCredentialsJSON(data []byte) Option {
	return func(o *Opts) { o.CredentialsJSON = data }
}

// GoogleCalendar implements Gateway on top of the Google Calendar API.
type GoogleCalendar struct {
	svc        *calendarapi.Service
	calendarID string
	timezone   string
}

// NewGoogleCalendar builds the gateway. Credentials come from the JSON
// option, the file option, or application default credentials, in that
// order.
func NewGoogleCalendar(ctx context.Context, opts ...Option) (*GoogleCalendar, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = DefaultCalendarID
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	slog.Debug("GoogleCalendar options set",
		"calendar_id", cfg.CalendarID,
		"timezone", cfg.Timezone,
		"credentials_file_set", cfg.CredentialsFile != "",
		"credentials_json_set", len(cfg.CredentialsJSON) > 0)

	var clientOpts []option.ClientOption
	switch {
	case len(cfg.CredentialsJSON) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := calendarapi.NewService(ctx, clientOpts...)
	if err != nil {
		slog.Error("Failed to initialize Google Calendar service", "error", err)
		return nil, fmt.Errorf("failed to initialize calendar service: %w", err)
	}

	slog.Info("GoogleCalendar gateway initialized", "calendar_id", cfg.CalendarID)
	return &GoogleCalendar{svc: svc, calendarID: cfg.CalendarID, timezone: cfg.Timezone}, nil
}

// ListBusyIntervals lists events in the window and maps them to busy
// intervals. All-day events and events without parseable times are skipped.
func (g *GoogleCalendar) ListBusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]models.BusyInterval, error) {
	result, err := g.svc.Events.List(g.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		slog.Error("GoogleCalendar ListBusyIntervals failed", "error", err, "calendar_id", g.calendarID)
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	busy := busyFromEvents(result.Items)
	slog.Debug("GoogleCalendar ListBusyIntervals succeeded", "events", len(result.Items), "busy", len(busy))
	return busy, nil
}

// CreateEvent inserts an appointment event with the shop's reminder policy
// (email one day before, popup ten minutes before).
func (g *GoogleCalendar) CreateEvent(ctx context.Context, summary string, slot models.TimeSlot, description string) (string, error) {
	if err := slot.Validate(); err != nil {
		return "", err
	}

	event := &calendarapi.Event{
		Summary:     summary,
		Description: description,
		Start: &calendarapi.EventDateTime{
			DateTime: slot.Start.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &calendarapi.EventDateTime{
			DateTime: slot.End.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		Reminders: &calendarapi.EventReminders{
			UseDefault: false,
			Overrides: []*calendarapi.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		slog.Error("GoogleCalendar CreateEvent failed", "error", err, "summary", summary)
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}

	slog.Info("GoogleCalendar event created", "event_id", created.Id, "start", slot.Start)
	return created.Id, nil
}

// CancelEvent deletes an event by ID.
func (g *GoogleCalendar) CancelEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("event ID cannot be empty")
	}
	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		slog.Error("GoogleCalendar CancelEvent failed", "error", err, "event_id", eventID)
		return fmt.Errorf("failed to cancel calendar event %s: %w", eventID, err)
	}
	slog.Info("GoogleCalendar event cancelled", "event_id", eventID)
	return nil
}

// busyFromEvents maps calendar events to busy intervals, skipping entries
// without concrete start/end times.
func busyFromEvents(events []*calendarapi.Event) []models.BusyInterval {
	busy := make([]models.BusyInterval, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Start == nil || ev.End == nil {
			continue
		}
		if ev.Start.DateTime == "" || ev.End.DateTime == "" {
			// All-day events carry only a date; they do not block grid slots.
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			slog.Warn("GoogleCalendar skipping event with unparseable start", "event_id", ev.Id, "error", err)
			continue
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			slog.Warn("GoogleCalendar skipping event with unparseable end", "event_id", ev.Id, "error", err)
			continue
		}
		busy = append(busy, models.BusyInterval{Start: start, End: end})
	}
	return busy
}
