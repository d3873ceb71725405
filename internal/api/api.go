// Package api wires the ZapGenda service together and exposes its HTTP
// surface.
//
// Run builds the storage, GenAI, calendar and messaging collaborators,
// starts the conversation router and the reminder scheduler, and serves the
// operational endpoints until the context is cancelled.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapgenda/zapgenda/internal/booking"
	"github.com/zapgenda/zapgenda/internal/calendar"
	"github.com/zapgenda/zapgenda/internal/catalog"
	"github.com/zapgenda/zapgenda/internal/debounce"
	"github.com/zapgenda/zapgenda/internal/genai"
	"github.com/zapgenda/zapgenda/internal/messaging"
	"github.com/zapgenda/zapgenda/internal/scheduler"
	"github.com/zapgenda/zapgenda/internal/session"
	"github.com/zapgenda/zapgenda/internal/store"
	"github.com/zapgenda/zapgenda/internal/transcription"
	"github.com/zapgenda/zapgenda/internal/twiliowhatsapp"
	"github.com/zapgenda/zapgenda/internal/whatsapp"
)

// Defaults for the API server configuration.
const (
	DefaultAddr     = ":8080"
	DefaultTimezone = "America/Sao_Paulo"

	// TransportWhatsmeow uses a live whatsmeow session; TransportTwilio
	// uses the Twilio REST API plus an inbound webhook.
	TransportWhatsmeow = "whatsmeow"
	TransportTwilio    = "twilio"

	shutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	Transport      string
	Timezone       string
	CatalogPath    string
	DebounceWindow time.Duration
	SessionTimeout time.Duration
	ReminderCron   string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTransport selects the messaging transport ("whatsmeow" or "twilio").
func WithTransport(transport string) Option {
	return func(o *Opts) { o.Transport = transport }
}

// WithTimezone sets the business timezone for date interpretation.
func WithTimezone(tz string) Option {
	return func(o *Opts) { o.Timezone = tz }
}

// WithCatalogPath sets the services catalog YAML path.
func WithCatalogPath(path string) Option {
	return func(o *Opts) { o.CatalogPath = path }
}

// WithDebounceWindow sets the text message debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(o *Opts) { o.DebounceWindow = d }
}

// WithSessionTimeout sets the session inactivity timeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SessionTimeout = d }
}

// WithReminderCron sets the cron expression for the daily reminder sweep.
func WithReminderCron(expr string) Option {
	return func(o *Opts) { o.ReminderCron = expr }
}

// Server holds the running collaborators for the HTTP handlers.
type Server struct {
	store store.Store
	loc   *time.Location
}

// Run builds and runs the full service until the context is cancelled.
func Run(ctx context.Context, waOpts []whatsapp.Option, twilioOpts []twiliowhatsapp.Option,
	storeOpts []store.Option, genaiOpts []genai.Option, calOpts []calendar.Option, opts ...Option) error {

	cfg := Opts{
		Addr:           DefaultAddr,
		Transport:      TransportWhatsmeow,
		Timezone:       DefaultTimezone,
		DebounceWindow: debounce.DefaultWindow,
		SessionTimeout: session.DefaultTimeout,
		ReminderCron:   scheduler.DefaultReminderCron,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("API Run options resolved", "addr", cfg.Addr, "transport", cfg.Transport,
		"timezone", cfg.Timezone, "debounce_window", cfg.DebounceWindow,
		"session_timeout", cfg.SessionTimeout, "reminder_cron", cfg.ReminderCron)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load service catalog: %w", err)
	}
	slog.Info("Service catalog loaded", "services", cat.Len())

	ai, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	gateway := buildCalendar(ctx, calOpts)

	svc, err := buildMessagingService(cfg.Transport, waOpts, twilioOpts)
	if err != nil {
		return err
	}

	handler := booking.NewHandler(ai, gateway, st, cat, booking.WithLocation(loc))
	coordinator := session.NewCoordinator(st, ai, handler,
		session.WithTimeout(cfg.SessionTimeout),
		session.WithSummarizer(ai))

	routerOpts := []messaging.RouterOption{messaging.WithDebounceWindow(cfg.DebounceWindow)}
	if tr, err := transcription.NewService(); err != nil {
		slog.Warn("Transcription disabled", "error", err)
	} else {
		routerOpts = append(routerOpts, messaging.WithTranscriber(tr))
	}

	router := messaging.NewRouter(svc, coordinator, routerOpts...)
	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message router: %w", err)
	}
	defer router.Stop()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	reminders := scheduler.NewReminderJob(st, svc, loc)
	if err := sched.AddJob(cfg.ReminderCron, func() { reminders.Run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	slog.Info("Reminder job scheduled", "cron", cfg.ReminderCron)

	server := &Server{store: st, loc: loc}
	mux := http.NewServeMux()
	server.registerRoutes(mux)
	if twilioSvc, ok := svc.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioSvc.WebhookHandler)
		slog.Info("Twilio webhook registered", "path", "/webhook/twilio")
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ZapGenda API listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if err := svc.Stop(); err != nil {
		slog.Error("Messaging service stop failed", "error", err)
	}
	return nil
}

// buildStore selects the storage backend from the DSN. No DSN yields the
// in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		st, err := store.NewPostgresStore(storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return st, nil
	}
	st, err := store.NewSQLiteStore(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	return st, nil
}

// buildCalendar creates the Google Calendar gateway, degrading to the
// unavailable gateway when initialization fails.
func buildCalendar(ctx context.Context, calOpts []calendar.Option) calendar.Gateway {
	gw, err := calendar.NewGoogleCalendar(ctx, calOpts...)
	if err != nil {
		slog.Warn("Google Calendar unavailable, bookings will not be confirmed", "error", err)
		return calendar.Unavailable{}
	}
	return gw
}

func buildMessagingService(transport string, waOpts []whatsapp.Option, twilioOpts []twiliowhatsapp.Option) (messaging.Service, error) {
	switch transport {
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(twilioOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case TransportWhatsmeow:
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging transport %q", transport)
	}
}
