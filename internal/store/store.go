// Package store provides storage backends for ZapGenda.
//
// It persists client sessions, conversation summaries and booked
// appointments behind one interface, with SQLite, PostgreSQL and in-memory
// implementations.
package store

import (
	"strings"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// DefaultSummaryLimit caps the conversation summaries kept per client.
const DefaultSummaryLimit = 5

// Store is the persistence contract consumed by the session coordinator
// and booking handlers. GetClientSession returns (nil, nil) for unknown
// clients; SaveClientSession upserts.
type Store interface {
	GetClientSession(clientKey string) (*models.ClientSession, error)
	SaveClientSession(session models.ClientSession) error
	ListClientSessions() ([]models.ClientSession, error)

	// AddConversationSummary appends one exchange and trims history beyond
	// DefaultSummaryLimit for that client.
	AddConversationSummary(summary models.ConversationSummary) error
	GetRecentSummaries(clientKey string, limit int) ([]models.ConversationSummary, error)

	AddAppointment(appt models.Appointment) error
	GetAppointmentsByClient(clientKey string) ([]models.Appointment, error)
	GetAppointmentsBetween(start, end time.Time) ([]models.Appointment, error)
	DeleteAppointment(id string) error

	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for persistent stores.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL schemes or key=value connection strings; anything else is treated
// as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
