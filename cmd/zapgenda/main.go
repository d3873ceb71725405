package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zapgenda/zapgenda/internal/api"
	"github.com/zapgenda/zapgenda/internal/calendar"
	"github.com/zapgenda/zapgenda/internal/debounce"
	"github.com/zapgenda/zapgenda/internal/genai"
	"github.com/zapgenda/zapgenda/internal/lockfile"
	"github.com/zapgenda/zapgenda/internal/session"
	"github.com/zapgenda/zapgenda/internal/store"
	"github.com/zapgenda/zapgenda/internal/twiliowhatsapp"
	"github.com/zapgenda/zapgenda/internal/util"
	"github.com/zapgenda/zapgenda/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ZapGenda state data
	DefaultStateDir = "/var/lib/zapgenda"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "zapgenda.db"
	// DefaultCatalogFileName is the default services catalog filename
	DefaultCatalogFileName = "services.yaml"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A single instance per state directory: the whatsmeow session store
	// cannot be shared.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	waOpts := buildWhatsAppOptions(flags, config)
	twilioOpts := buildTwilioOptions(flags)
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	calOpts := buildCalendarOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the service
	slog.Info("Bootstrapping ZapGenda with configured modules")
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "twilio", len(twilioOpts),
		"store", len(storeOpts), "genai", len(genaiOpts), "calendar", len(calOpts), "api", len(apiOpts))
	if err := api.Run(ctx, waOpts, twilioOpts, storeOpts, genaiOpts, calOpts, apiOpts...); err != nil {
		slog.Error("ZapGenda failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ZapGenda exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	WhatsAppDSN    string
	StateDir       string
	OpenAIKey      string
	APIAddr        string
	Transport      string
	Timezone       string
	CatalogPath    string
	GoogleCreds    string
	GoogleCalendar string
	ReminderCron   string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	apiAddr        *string
	transport      *string
	timezone       *string
	catalogPath    *string
	googleCreds    *string
	googleCalendar *string
	reminderCron   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:       os.Getenv("ZAPGENDA_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("API_ADDR"),
		Transport:      os.Getenv("MESSAGING_TRANSPORT"),
		Timezone:       os.Getenv("BUSINESS_TIMEZONE"),
		CatalogPath:    os.Getenv("SERVICES_FILE"),
		GoogleCreds:    os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		GoogleCalendar: os.Getenv("GOOGLE_CALENDAR_ID"),
		ReminderCron:   os.Getenv("REMINDER_CRON"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ZAPGENDA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default the WhatsApp session DSN to the shared database URL
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = config.DatabaseURL
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
		slog.Debug("No WhatsApp DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.CatalogPath == "" {
		config.CatalogPath = filepath.Join(config.StateDir, DefaultCatalogFileName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"ZAPGENDA_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_TRANSPORT", config.Transport,
		"BUSINESS_TIMEZONE", config.Timezone,
		"SERVICES_FILE", config.CatalogPath,
		"GOOGLE_CREDENTIALS_FILE_SET", config.GoogleCreds != "",
		"REMINDER_CRON", config.ReminderCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:       flag.String("qr-output", "", "path to write login QR code"),
		numeric:        flag.Bool("numeric-code", util.ParseBoolEnv("NUMERIC_CODE", false), "use numeric login code instead of QR code (overrides $NUMERIC_CODE)"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for ZapGenda data (overrides $ZAPGENDA_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the appointment store (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		transport:      flag.String("transport", config.Transport, "messaging transport, whatsmeow or twilio (overrides $MESSAGING_TRANSPORT)"),
		timezone:       flag.String("timezone", config.Timezone, "business timezone (overrides $BUSINESS_TIMEZONE)"),
		catalogPath:    flag.String("services-file", config.CatalogPath, "services catalog YAML path (overrides $SERVICES_FILE)"),
		googleCreds:    flag.String("google-credentials", config.GoogleCreds, "Google service account credentials file (overrides $GOOGLE_CREDENTIALS_FILE)"),
		googleCalendar: flag.String("google-calendar-id", config.GoogleCalendar, "Google Calendar ID (overrides $GOOGLE_CALENDAR_ID)"),
		reminderCron:   flag.String("reminder-cron", config.ReminderCron, "cron expression for the daily reminder sweep (overrides $REMINDER_CRON)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"transport", *flags.transport,
		"timezone", *flags.timezone,
		"servicesFile", *flags.catalogPath,
		"reminderCron", *flags.reminderCron)

	// Follow a moved state directory when the DSN still points at the default
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags, config Config) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if config.WhatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsAppDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options. Credentials
// come from the TWILIO_* environment variables inside the client.
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildCalendarOptions constructs Google Calendar configuration options
func buildCalendarOptions(flags Flags) []calendar.Option {
	var calOpts []calendar.Option
	if *flags.googleCreds != "" {
		calOpts = append(calOpts, calendar.WithCredentialsFile(*flags.googleCreds))
	}
	if *flags.googleCalendar != "" {
		calOpts = append(calOpts, calendar.WithCalendarID(*flags.googleCalendar))
	}
	if *flags.timezone != "" {
		calOpts = append(calOpts, calendar.WithTimezone(*flags.timezone))
	}
	return calOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.transport != "" {
		apiOpts = append(apiOpts, api.WithTransport(*flags.transport))
	}
	if *flags.timezone != "" {
		apiOpts = append(apiOpts, api.WithTimezone(*flags.timezone))
	}
	if *flags.catalogPath != "" {
		apiOpts = append(apiOpts, api.WithCatalogPath(*flags.catalogPath))
	}
	if *flags.reminderCron != "" {
		apiOpts = append(apiOpts, api.WithReminderCron(*flags.reminderCron))
	}
	apiOpts = append(apiOpts,
		api.WithDebounceWindow(util.ParseSecondsEnv("DEBOUNCE_SECONDS", debounce.DefaultWindow)),
		api.WithSessionTimeout(util.ParseMinutesEnv("SESSION_TIMEOUT_MINUTES", session.DefaultTimeout)))
	return apiOpts
}
