package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zapgenda/zapgenda/internal/calendar"
	"github.com/zapgenda/zapgenda/internal/catalog"
	"github.com/zapgenda/zapgenda/internal/genai"
	"github.com/zapgenda/zapgenda/internal/models"
	"github.com/zapgenda/zapgenda/internal/store"
)

// Reply strings sent to clients. All client-facing text is Brazilian
// Portuguese.
const (
	replyMissingBookingFields = "Desculpe, preciso do serviço, data e hora para agendar. Poderia fornecer?"
	replyBadDateTime          = "Desculpe, não entendi a data e hora. Pode informar no formato DD/MM e HH:MM?"
	replyBookingFailure       = "Desculpe, tive um problema ao confirmar seu horário. Pode tentar novamente em instantes?"
	replyMissingCancelDate    = "Para cancelar, preciso da data do agendamento. Qual é a data?"
	replyCancelNotFound       = "Não encontrei nenhum agendamento seu para essa data."
	replyFAQFailure           = "Desculpe, não consegui responder agora. Pode perguntar novamente em instantes?"
)

// assistant is the extraction and FAQ surface the handlers need from the
// GenAI client.
type assistant interface {
	ExtractBooking(ctx context.Context, text string) (genai.BookingDetails, error)
	ExtractCancellation(ctx context.Context, text string) (models.CancellationRequest, error)
	AnswerFAQ(ctx context.Context, question, servicesSummary string) (string, error)
}

// Handler resolves booking, cancellation and FAQ requests into client
// replies. Collaborator failures never escape as errors; each handler
// degrades to an apologetic or clarifying reply.
type Handler struct {
	assistant assistant
	gateway   calendar.Gateway
	store     store.Store
	catalog   *catalog.Catalog
	finder    *SlotFinder
	loc       *time.Location
	now       func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSlotFinder replaces the default slot finder.
func WithSlotFinder(f *SlotFinder) HandlerOption {
	return func(h *Handler) { h.finder = f }
}

// WithLocation sets the timezone used to interpret client-provided dates.
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *Handler) { h.loc = loc }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a booking handler wired to its collaborators.
func NewHandler(a assistant, gw calendar.Gateway, st store.Store, cat *catalog.Catalog, opts ...HandlerOption) *Handler {
	h := &Handler{
		assistant: a,
		gateway:   gw,
		store:     st,
		catalog:   cat,
		finder:    NewSlotFinder(),
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// buildBookingRequest validates the extracted fields and resolves them
// against the catalog into a concrete booking request.
func (h *Handler) buildBookingRequest(details genai.BookingDetails) (models.BookingRequest, error) {
	switch {
	case details.Service == "":
		return models.BookingRequest{}, models.ErrMissingService
	case details.Date == "":
		return models.BookingRequest{}, models.ErrMissingDate
	case details.Hour == "":
		return models.BookingRequest{}, models.ErrMissingHour
	}

	requested, err := ParseDateTime(details.Date, details.Hour, h.now().In(h.loc), h.loc)
	if err != nil {
		return models.BookingRequest{}, err
	}

	service := catalog.Normalize(details.Service)
	req := models.BookingRequest{
		Service:         service,
		Barber:          details.Barber,
		RequestedStart:  requested,
		DurationMinutes: h.catalog.DurationMinutes(service),
	}
	return req, req.Validate()
}

// missingBookingField reports whether the error is one of the
// missing-field sentinels that warrant a clarification reply.
func missingBookingField(err error) bool {
	return errors.Is(err, models.ErrMissingService) ||
		errors.Is(err, models.ErrMissingDate) ||
		errors.Is(err, models.ErrMissingHour)
}

// HandleBooking extracts booking details from the client text, finds an
// available slot and books it. It always returns a reply for the client.
func (h *Handler) HandleBooking(ctx context.Context, session models.ClientSession, text string) string {
	details, err := h.assistant.ExtractBooking(ctx, text)
	if err != nil {
		slog.Error("Booking extraction failed", "error", err, "clientKey", session.ClientKey)
		return replyMissingBookingFields
	}

	req, err := h.buildBookingRequest(details)
	if missingBookingField(err) {
		slog.Debug("Booking request incomplete", "clientKey", session.ClientKey, "reason", err)
		return replyMissingBookingFields
	}
	if err != nil {
		slog.Warn("Booking date/hour unparseable", "error", err, "clientKey", session.ClientKey,
			"date", details.Date, "hour", details.Hour)
		return replyBadDateTime
	}

	dayStart := time.Date(req.RequestedStart.Year(), req.RequestedStart.Month(), req.RequestedStart.Day(), 0, 0, 0, 0, h.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	busy, err := h.gateway.ListBusyIntervals(ctx, dayStart, dayEnd)
	if err != nil {
		slog.Warn("Busy interval listing failed, proceeding without availability check",
			"error", err, "clientKey", session.ClientKey)
		busy = nil
	}

	slot, verified := h.finder.FindNextAvailableSlot(req.RequestedStart, req.DurationMinutes, busy)
	if !verified {
		slog.Warn("Slot search exhausted, booking at requested time unverified",
			"clientKey", session.ClientKey, "start", slot.Start)
	}

	clientName := session.Name
	if clientName == "" {
		clientName = session.ClientKey
	}
	summary := fmt.Sprintf("%s - %s", titleCase(req.Service), clientName)
	description := fmt.Sprintf("Agendamento via WhatsApp. Cliente: %s", session.ClientKey)

	eventID, err := h.gateway.CreateEvent(ctx, summary, slot, description)
	if err != nil {
		slog.Error("Calendar event creation failed", "error", err, "clientKey", session.ClientKey)
		return replyBookingFailure
	}

	appt := models.Appointment{
		ID:        uuid.NewString(),
		ClientKey: session.ClientKey,
		Service:   req.Service,
		Start:     slot.Start,
		End:       slot.End,
		EventID:   eventID,
		CreatedAt: h.now(),
	}
	if err := h.store.AddAppointment(appt); err != nil {
		// The calendar event exists; persistence is best effort.
		slog.Error("Appointment persistence failed", "error", err, "clientKey", session.ClientKey, "eventID", eventID)
	}
	slog.Info("Appointment booked", "clientKey", session.ClientKey, "service", req.Service,
		"start", slot.Start, "eventID", eventID)

	reply := fmt.Sprintf("Perfeito! Seu agendamento de %s está confirmado para %s às %s. Até lá! 💈",
		req.Service, slot.Start.Format("02/01/2006"), slot.Start.Format("15:04"))
	if !slot.Start.Equal(RoundUpToGrid(req.RequestedStart)) {
		reply = fmt.Sprintf("O horário pedido estava ocupado, então reservei o próximo disponível: %s de %s às %s. Combinado? 💈",
			req.Service, slot.Start.Format("02/01/2006"), slot.Start.Format("15:04"))
	}
	return reply
}

// HandleCancellation extracts the cancellation details, locates the matching
// appointment and removes it from the calendar and the store.
func (h *Handler) HandleCancellation(ctx context.Context, session models.ClientSession, text string) string {
	req, err := h.assistant.ExtractCancellation(ctx, text)
	if err != nil {
		slog.Error("Cancellation extraction failed", "error", err, "clientKey", session.ClientKey)
		return replyMissingCancelDate
	}
	if req.Date == "" {
		return replyMissingCancelDate
	}

	day, err := time.ParseInLocation("02/01/2006", req.Date, h.loc)
	if err != nil {
		slog.Warn("Cancellation date unparseable", "error", err, "clientKey", session.ClientKey, "date", req.Date)
		return replyBadDateTime
	}

	appts, err := h.store.GetAppointmentsByClient(session.ClientKey)
	if err != nil {
		slog.Error("Appointment lookup failed", "error", err, "clientKey", session.ClientKey)
		return replyBookingFailure
	}

	wantService := catalog.Normalize(req.Service)
	var match *models.Appointment
	for i := range appts {
		start := appts[i].Start.In(h.loc)
		if start.Year() != day.Year() || start.YearDay() != day.YearDay() {
			continue
		}
		if wantService != "" && appts[i].Service != wantService {
			continue
		}
		match = &appts[i]
		break
	}
	if match == nil {
		slog.Debug("No appointment matched cancellation request",
			"clientKey", session.ClientKey, "date", req.Date, "service", wantService)
		return replyCancelNotFound
	}

	if match.EventID != "" {
		if err := h.gateway.CancelEvent(ctx, match.EventID); err != nil {
			slog.Warn("Calendar event cancellation failed, removing local record anyway",
				"error", err, "eventID", match.EventID)
		}
	}
	if err := h.store.DeleteAppointment(match.ID); err != nil {
		slog.Error("Appointment deletion failed", "error", err, "id", match.ID)
		return replyBookingFailure
	}
	slog.Info("Appointment cancelled", "clientKey", session.ClientKey, "id", match.ID, "start", match.Start)

	return fmt.Sprintf("Seu agendamento de %s em %s às %s foi cancelado. Esperamos te ver em breve!",
		match.Service, match.Start.In(h.loc).Format("02/01/2006"), match.Start.In(h.loc).Format("15:04"))
}

// HandleFAQ answers a general question about the business using the service
// catalog as context.
func (h *Handler) HandleFAQ(ctx context.Context, session models.ClientSession, text string) string {
	answer, err := h.assistant.AnswerFAQ(ctx, text, h.catalog.Summary())
	if err != nil {
		slog.Error("FAQ answer failed", "error", err, "clientKey", session.ClientKey)
		return replyFAQFailure
	}
	return answer
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseDateTime combines a DD/MM/YYYY or DD/MM date and an HH:MM hour into
// a local time. Hours like "14h" and "14h30" are accepted; a year-less
// date refers to its next occurrence relative to now.
func ParseDateTime(dateStr, hourStr string, now time.Time, loc *time.Location) (time.Time, error) {
	hourStr = strings.TrimSpace(strings.ToLower(hourStr))
	if strings.Contains(hourStr, "h") {
		parts := strings.SplitN(hourStr, "h", 2)
		if parts[1] == "" {
			parts[1] = "00"
		}
		hourStr = parts[0] + ":" + parts[1]
	}

	dateStr = strings.TrimSpace(dateStr)
	t, err := time.ParseInLocation("02/01/2006 15:04", dateStr+" "+hourStr, loc)
	if err == nil {
		return t, nil
	}

	dayMonth, dmErr := time.ParseInLocation("02/01 15:04", dateStr+" "+hourStr, loc)
	if dmErr != nil {
		return time.Time{}, fmt.Errorf("invalid date/hour %q %q: %w", dateStr, hourStr, err)
	}
	t = time.Date(now.Year(), dayMonth.Month(), dayMonth.Day(),
		dayMonth.Hour(), dayMonth.Minute(), 0, 0, loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if t.Before(today) {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}
