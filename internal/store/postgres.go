package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/zapgenda/zapgenda/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL using the DSN and runs migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetClientSession(clientKey string) (*models.ClientSession, error) {
	row := s.db.QueryRow(`SELECT client_key, name, preferred_service, preferred_barber, total_appointments,
		active, last_interaction_at, created_at, updated_at
		FROM client_sessions WHERE client_key = $1`, clientKey)

	sess, err := scanClientSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetClientSession not found", "clientKey", clientKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetClientSession failed", "error", err, "clientKey", clientKey)
		return nil, fmt.Errorf("failed to get client session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) SaveClientSession(session models.ClientSession) error {
	_, err := s.db.Exec(`INSERT INTO client_sessions
		(client_key, name, preferred_service, preferred_barber, total_appointments, active, last_interaction_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_key) DO UPDATE SET
			name = EXCLUDED.name,
			preferred_service = EXCLUDED.preferred_service,
			preferred_barber = EXCLUDED.preferred_barber,
			total_appointments = EXCLUDED.total_appointments,
			active = EXCLUDED.active,
			last_interaction_at = EXCLUDED.last_interaction_at,
			updated_at = EXCLUDED.updated_at`,
		session.ClientKey, nilIfEmpty(session.Name), nilIfEmpty(session.PreferredService),
		nilIfEmpty(session.PreferredBarber), session.TotalAppointments, session.Active,
		nilIfNilTime(session.LastInteractionAt), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveClientSession failed", "error", err, "clientKey", session.ClientKey)
		return fmt.Errorf("failed to save client session %s: %w", session.ClientKey, err)
	}
	slog.Debug("PostgresStore SaveClientSession succeeded", "clientKey", session.ClientKey, "active", session.Active)
	return nil
}

func (s *PostgresStore) ListClientSessions() ([]models.ClientSession, error) {
	rows, err := s.db.Query(`SELECT client_key, name, preferred_service, preferred_barber, total_appointments,
		active, last_interaction_at, created_at, updated_at
		FROM client_sessions ORDER BY client_key`)
	if err != nil {
		slog.Error("PostgresStore ListClientSessions failed", "error", err)
		return nil, fmt.Errorf("failed to list client sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ClientSession
	for rows.Next() {
		sess, err := scanClientSessionRows(rows)
		if err != nil {
			slog.Error("PostgresStore ListClientSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) AddConversationSummary(summary models.ConversationSummary) error {
	_, err := s.db.Exec(`INSERT INTO conversation_summaries (client_key, summary, agent_response, timestamp)
		VALUES ($1, $2, $3, $4)`,
		summary.ClientKey, summary.Summary, nilIfEmpty(summary.AgentResponse), summary.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddConversationSummary failed", "error", err, "clientKey", summary.ClientKey)
		return fmt.Errorf("failed to insert conversation summary: %w", err)
	}

	_, err = s.db.Exec(`DELETE FROM conversation_summaries
		WHERE client_key = $1 AND id NOT IN (
			SELECT id FROM conversation_summaries WHERE client_key = $1
			ORDER BY timestamp DESC, id DESC LIMIT $2)`,
		summary.ClientKey, DefaultSummaryLimit)
	if err != nil {
		slog.Error("PostgresStore summary trim failed", "error", err, "clientKey", summary.ClientKey)
		return fmt.Errorf("failed to trim conversation summaries: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecentSummaries(clientKey string, limit int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	rows, err := s.db.Query(`SELECT client_key, summary, agent_response, timestamp
		FROM conversation_summaries WHERE client_key = $1
		ORDER BY timestamp DESC, id DESC LIMIT $2`, clientKey, limit)
	if err != nil {
		slog.Error("PostgresStore GetRecentSummaries failed", "error", err, "clientKey", clientKey)
		return nil, fmt.Errorf("failed to query conversation summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var cs models.ConversationSummary
		var agentResponse sql.NullString
		if err := rows.Scan(&cs.ClientKey, &cs.Summary, &agentResponse, &cs.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan conversation summary: %w", err)
		}
		cs.AgentResponse = agentResponse.String
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

func (s *PostgresStore) AddAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(`INSERT INTO appointments (id, client_key, service, start_time, end_time, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		appt.ID, appt.ClientKey, appt.Service, appt.Start, appt.End, nilIfEmpty(appt.EventID), appt.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddAppointment failed", "error", err, "id", appt.ID)
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	slog.Debug("PostgresStore AddAppointment succeeded", "id", appt.ID, "clientKey", appt.ClientKey)
	return nil
}

func (s *PostgresStore) GetAppointmentsByClient(clientKey string) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, client_key, service, start_time, end_time, event_id, created_at
		FROM appointments WHERE client_key = $1 ORDER BY start_time`, clientKey)
	if err != nil {
		slog.Error("PostgresStore GetAppointmentsByClient failed", "error", err, "clientKey", clientKey)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) GetAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, client_key, service, start_time, end_time, event_id, created_at
		FROM appointments WHERE start_time >= $1 AND start_time < $2 ORDER BY start_time`, start, end)
	if err != nil {
		slog.Error("PostgresStore GetAppointmentsBetween failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) DeleteAppointment(id string) error {
	res, err := s.db.Exec(`DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteAppointment failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete appointment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAppointmentMissing
	}
	return nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL connection pool")
	return s.db.Close()
}
