// Package models defines the core data structures for ZapGenda.
//
// It includes the inbound message envelope, intents, calendar slot types
// and the per-client session record shared across modules.
package models

import (
	"errors"
	"time"
)

// Intent classifies what the client is asking for in a message.
type Intent string

const (
	// IntentActivate starts a conversation ("oi", "olá", explicit greeting).
	IntentActivate Intent = "ativar"
	// IntentBook requests a new appointment.
	IntentBook Intent = "agendar"
	// IntentCancel requests cancellation of an existing appointment.
	IntentCancel Intent = "cancelar"
	// IntentFAQ asks a question about services, prices or opening hours.
	IntentFAQ Intent = "faq"
	// IntentDeactivate ends the conversation ("tchau", "obrigado, é só isso").
	IntentDeactivate Intent = "desativar"
	// IntentOther is the neutral category for everything else, including
	// classifier failures.
	IntentOther Intent = "outro"
)

// IsValidIntent checks if the given intent is one of the known categories.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentActivate, IntentBook, IntentCancel, IntentFAQ, IntentDeactivate, IntentOther:
		return true
	default:
		return false
	}
}

// MessageType distinguishes inbound payload kinds.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeAudio is a voice note; it bypasses debouncing and is
	// transcribed immediately.
	MessageTypeAudio MessageType = "audio"
)

// Message is the inbound message envelope produced by a messaging service.
// SenderKey is the canonicalized phone number used to partition all
// per-client state.
type Message struct {
	SenderKey string      `json:"sender_key"`
	Type      MessageType `json:"type"`
	Body      string      `json:"body,omitempty"`
	AudioRef  string      `json:"audio_ref,omitempty"` // opaque reference/URL to the audio payload
	Audio     []byte      `json:"-"`                   // raw audio bytes when the transport downloads them
	Time      int64       `json:"time"`                // unix timestamp of arrival
}

// TimeSlot is a candidate or confirmed appointment interval.
// Invariant: Start < End. Slots are ephemeral and never persisted as-is.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BusyInterval is a half-open occupied range [Start, End) reported by the
// calendar gateway. Read-only input to the slot finder.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookingRequest is the validated booking intent: extracted fields
// resolved against the catalog into a concrete start time and duration.
type BookingRequest struct {
	Service         string    `json:"servico"`
	Barber          string    `json:"nome_barbeiro,omitempty"`
	RequestedStart  time.Time `json:"-"`
	DurationMinutes int       `json:"-"`
}

// Validate checks the request invariants after field resolution.
func (r BookingRequest) Validate() error {
	if r.Service == "" {
		return ErrMissingService
	}
	if r.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// CancellationRequest holds the fields extracted from a cancellation
// utterance.
type CancellationRequest struct {
	FullName string `json:"nome_completo"`
	Service  string `json:"servico"`
	Date     string `json:"data_agendamento"`
}

// ClientSession is the per-client conversational record. One instance per
// distinct sender key, created on first contact with Active=false, mutated
// on every processed message and never deleted.
type ClientSession struct {
	ClientKey         string     `json:"client_key"`
	Name              string     `json:"name,omitempty"`
	PreferredService  string     `json:"preferred_service,omitempty"`
	PreferredBarber   string     `json:"preferred_barber,omitempty"`
	TotalAppointments int        `json:"total_appointments"`
	Active            bool       `json:"active"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Appointment is a booked slot persisted for cancellation lookup and
// reminders. EventID references the calendar gateway's event.
type Appointment struct {
	ID        string    `json:"id"`
	ClientKey string    `json:"client_key"`
	Service   string    `json:"service"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	EventID   string    `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one condensed exchange kept as conversational
// memory, capped per client.
type ConversationSummary struct {
	ClientKey     string    `json:"client_key"`
	Summary       string    `json:"summary"`
	AgentResponse string    `json:"agent_response,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Receipt records a delivery status change for an outbound message.
type Receipt struct {
	To     string `json:"to"`
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

// Delivery status values used in receipts.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// APIResponse is the envelope returned by the HTTP surface.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps a result in an ok envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error wraps a message in an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

// Error variables for validation and user-visible outcomes.
var (
	ErrEmptySenderKey     = errors.New("message has no resolvable sender key")
	ErrMissingService     = errors.New("booking request missing service")
	ErrMissingDate        = errors.New("booking request missing date")
	ErrMissingHour        = errors.New("booking request missing hour")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrInvalidSlot        = errors.New("slot start must precede end")
	ErrAppointmentMissing = errors.New("no matching appointment found")
)

// Validate checks the slot ordering invariant.
func (s TimeSlot) Validate() error {
	if !s.Start.Before(s.End) {
		return ErrInvalidSlot
	}
	return nil
}

// Overlaps reports whether the slot conflicts with a busy interval using
// half-open semantics: touching endpoints do not conflict.
func (s TimeSlot) Overlaps(b BusyInterval) bool {
	return s.Start.Before(b.End) && s.End.After(b.Start)
}
