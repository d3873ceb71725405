// Package session coordinates the per-client conversation lifecycle.
//
// Each client session is either in standby or active. Activation happens on
// an explicit greeting intent or implicitly when a standby client sends an
// actionable request; active sessions lapse back to standby after a period
// of inactivity, checked before any intent evaluation.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
	"github.com/zapgenda/zapgenda/internal/store"
)

// DefaultTimeout is the inactivity window after which an active session
// lapses back to standby.
const DefaultTimeout = 5 * time.Minute

// Client-facing replies, in Brazilian Portuguese.
const (
	replyGreeting = "Olá! Sou o assistente da barbearia. Posso agendar um horário, cancelar um agendamento ou tirar dúvidas sobre nossos serviços. Como posso ajudar? 💈"
	replyAlready  = "Estou por aqui! Posso agendar, cancelar ou responder dúvidas. O que você precisa?"
	replyFarewell = "Até a próxima! Quando precisar, é só chamar. 💈"
	replyFallback = "Desculpe, não entendi. Posso ajudar com agendamentos, cancelamentos ou dúvidas sobre nossos serviços."
	replyStandby  = "Oi! Sou o assistente da barbearia. Me diga se quer agendar um horário, cancelar um agendamento ou tirar alguma dúvida. 💈"
)

// Classifier maps free-form client text to an intent. It never fails; on
// classifier trouble it returns the fallback intent.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Intent
}

// Handlers resolves actionable intents into replies.
type Handlers interface {
	HandleBooking(ctx context.Context, session models.ClientSession, text string) string
	HandleCancellation(ctx context.Context, session models.ClientSession, text string) string
	HandleFAQ(ctx context.Context, session models.ClientSession, text string) string
}

// Summarizer condenses one exchange for conversational memory.
type Summarizer interface {
	Summarize(ctx context.Context, userInput, agentResponse string) string
}

// Coordinator owns session state transitions and dispatches messages to the
// intent handlers. Messages for the same client are processed serially.
type Coordinator struct {
	store      store.Store
	classifier Classifier
	handlers   Handlers
	summarizer Summarizer
	timeout    time.Duration
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTimeout overrides the session inactivity timeout.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSummarizer enables conversational memory persistence.
func WithSummarizer(s Summarizer) CoordinatorOption {
	return func(c *Coordinator) { c.summarizer = s }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a session coordinator.
func NewCoordinator(st store.Store, cl Classifier, h Handlers, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      st,
		classifier: cl,
		handlers:   h,
		timeout:    DefaultTimeout,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) clientLock(clientKey string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[clientKey]
	if !ok {
		l = &sync.Mutex{}
		c.locks[clientKey] = l
	}
	return l
}

// HandleMessage processes one client utterance and returns the reply to
// send. Every processed message yields exactly one reply; only messages
// without a sender key are rejected.
func (c *Coordinator) HandleMessage(ctx context.Context, clientKey, text string) (string, error) {
	if clientKey == "" {
		return "", models.ErrEmptySenderKey
	}

	lock := c.clientLock(clientKey)
	lock.Lock()
	defer lock.Unlock()

	now := c.now()
	sess, err := c.store.GetClientSession(clientKey)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "clientKey", clientKey)
		return "", err
	}
	if sess == nil {
		sess = &models.ClientSession{ClientKey: clientKey, CreatedAt: now}
		slog.Debug("New client session created", "clientKey", clientKey)
	}

	// Inactivity lapse is applied before looking at the message content.
	if sess.Active && sess.LastInteractionAt != nil && now.Sub(*sess.LastInteractionAt) > c.timeout {
		slog.Info("Session lapsed to standby", "clientKey", clientKey,
			"lastInteraction", *sess.LastInteractionAt)
		sess.Active = false
	}

	intent := c.classifier.Classify(ctx, text)
	slog.Debug("Message classified", "clientKey", clientKey, "intent", intent, "active", sess.Active)

	reply, mutated := "", true
	if sess.Active {
		reply = c.handleActive(ctx, sess, intent, text)
	} else {
		reply, mutated = c.handleStandby(ctx, sess, intent, text)
	}

	if !mutated {
		// Standby chatter gets the prompt without touching the stored
		// session or its clock.
		return reply, nil
	}

	sess.LastInteractionAt = &now
	sess.UpdatedAt = now
	if intent == models.IntentBook {
		if appts, err := c.store.GetAppointmentsByClient(clientKey); err == nil {
			sess.TotalAppointments = len(appts)
		}
	}
	if err := c.store.SaveClientSession(*sess); err != nil {
		slog.Error("Session persistence failed", "error", err, "clientKey", clientKey)
	}

	c.remember(ctx, clientKey, text, reply)
	return reply, nil
}

// handleStandby resolves a message for a standby session. The second
// return reports whether the session changed; anything that is not an
// activation or an actionable request gets the standby prompt and leaves
// the session untouched.
func (c *Coordinator) handleStandby(ctx context.Context, sess *models.ClientSession, intent models.Intent, text string) (string, bool) {
	switch intent {
	case models.IntentActivate:
		sess.Active = true
		return replyGreeting, true
	case models.IntentBook:
		sess.Active = true
		return replyGreeting + " " + c.handlers.HandleBooking(ctx, *sess, text), true
	case models.IntentCancel:
		sess.Active = true
		return replyGreeting + " " + c.handlers.HandleCancellation(ctx, *sess, text), true
	case models.IntentFAQ:
		sess.Active = true
		return replyGreeting + " " + c.handlers.HandleFAQ(ctx, *sess, text), true
	default:
		return replyStandby, false
	}
}

func (c *Coordinator) handleActive(ctx context.Context, sess *models.ClientSession, intent models.Intent, text string) string {
	switch intent {
	case models.IntentActivate:
		return replyAlready
	case models.IntentBook:
		return c.handlers.HandleBooking(ctx, *sess, text)
	case models.IntentCancel:
		return c.handlers.HandleCancellation(ctx, *sess, text)
	case models.IntentFAQ:
		return c.handlers.HandleFAQ(ctx, *sess, text)
	case models.IntentDeactivate:
		sess.Active = false
		return replyFarewell
	default:
		return replyFallback
	}
}

// remember persists a condensed record of the exchange. Failures are logged
// and never surface to the client.
func (c *Coordinator) remember(ctx context.Context, clientKey, text, reply string) {
	if c.summarizer == nil {
		return
	}
	summary := c.summarizer.Summarize(ctx, text, reply)
	err := c.store.AddConversationSummary(models.ConversationSummary{
		ClientKey:     clientKey,
		Summary:       summary,
		AgentResponse: reply,
		Timestamp:     c.now(),
	})
	if err != nil {
		slog.Warn("Conversation summary persistence failed", "error", err, "clientKey", clientKey)
	}
}
