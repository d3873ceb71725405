package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zapgenda/zapgenda/internal/debounce"
	"github.com/zapgenda/zapgenda/internal/models"
)

// replyAudioFailure is sent when a voice note cannot be transcribed.
const replyAudioFailure = "Desculpe, não consegui ouvir seu áudio. Pode escrever a mensagem?"

// Coordinator resolves one client utterance into a reply. An empty reply
// means no response should be sent.
type Coordinator interface {
	HandleMessage(ctx context.Context, clientKey, text string) (string, error)
}

// Transcriber converts a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, msg models.Message) (string, error)
}

// Router consumes inbound messages from a Service and drives the
// conversation pipeline. Text messages pass through the debouncer so rapid
// bursts collapse into one utterance; voice notes bypass it and are
// transcribed immediately.
type Router struct {
	service     Service
	coordinator Coordinator
	transcriber Transcriber
	debouncer   *debounce.Debouncer
	window      time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTranscriber enables voice note handling.
func WithTranscriber(t Transcriber) RouterOption {
	return func(r *Router) { r.transcriber = t }
}

// WithDebounceWindow overrides the text debounce window.
func WithDebounceWindow(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.window = d
		}
	}
}

// NewRouter creates a router wiring the messaging service to the
// conversation coordinator.
func NewRouter(service Service, coordinator Coordinator, opts ...RouterOption) *Router {
	r := &Router{
		service:     service,
		coordinator: coordinator,
		window:      debounce.DefaultWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins consuming inbound messages until the context is cancelled or
// Stop is called.
func (r *Router) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	r.debouncer = debounce.New(func(clientKey, combinedText string, lastMessage models.Message) {
		r.process(ctx, clientKey, combinedText)
	}, debounce.WithWindow(r.window))

	if err := r.service.Start(ctx); err != nil {
		return err
	}

	r.wg.Add(1)
	go r.consume(ctx)
	slog.Info("Router started", "debounce_window", r.window)
	return nil
}

// Stop halts message consumption and flushes router resources.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.debouncer != nil {
		r.debouncer.Stop()
	}
	r.wg.Wait()
	slog.Info("Router stopped")
}

func (r *Router) consume(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-r.service.Messages():
			if !ok {
				slog.Debug("Router message channel closed")
				return
			}
			r.dispatch(ctx, msg)
		}
	}
}

// dispatch routes one inbound message. Only messages without a sender key
// are dropped; everything else produces at most one reply.
func (r *Router) dispatch(ctx context.Context, msg models.Message) {
	if msg.SenderKey == "" {
		slog.Warn("Router dropping message without sender key")
		return
	}

	switch msg.Type {
	case models.MessageTypeAudio:
		r.handleAudio(ctx, msg)
	default:
		r.debouncer.OnMessage(msg)
	}
}

// handleAudio transcribes a voice note and feeds the text straight to the
// coordinator, skipping the debounce window.
func (r *Router) handleAudio(ctx context.Context, msg models.Message) {
	if r.transcriber == nil {
		slog.Warn("Router received voice note but transcription is disabled", "senderKey", msg.SenderKey)
		r.reply(ctx, msg.SenderKey, replyAudioFailure)
		return
	}

	text, err := r.transcriber.Transcribe(ctx, msg)
	if err != nil {
		slog.Error("Voice note transcription failed", "error", err, "senderKey", msg.SenderKey)
		r.reply(ctx, msg.SenderKey, replyAudioFailure)
		return
	}
	slog.Debug("Voice note transcribed", "senderKey", msg.SenderKey, "text_length", len(text))
	r.process(ctx, msg.SenderKey, text)
}

// process hands one utterance to the coordinator and sends the reply.
func (r *Router) process(ctx context.Context, clientKey, text string) {
	reply, err := r.coordinator.HandleMessage(ctx, clientKey, text)
	if err != nil {
		slog.Error("Message processing failed", "error", err, "clientKey", clientKey)
		return
	}
	if reply == "" {
		return
	}
	r.reply(ctx, clientKey, reply)
}

func (r *Router) reply(ctx context.Context, clientKey, body string) {
	if err := r.service.SendMessage(ctx, clientKey, body); err != nil {
		slog.Error("Reply delivery failed", "error", err, "clientKey", clientKey)
	}
}
