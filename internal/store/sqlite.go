// Package store provides storage backends for ZapGenda.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zapgenda/zapgenda/internal/models"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite store at the DSN file path, creating the
// parent directory and running migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetClientSession(clientKey string) (*models.ClientSession, error) {
	row := s.db.QueryRow(`SELECT client_key, name, preferred_service, preferred_barber, total_appointments,
		active, last_interaction_at, created_at, updated_at
		FROM client_sessions WHERE client_key = ?`, clientKey)

	sess, err := scanClientSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetClientSession not found", "clientKey", clientKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetClientSession failed", "error", err, "clientKey", clientKey)
		return nil, fmt.Errorf("failed to get client session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) SaveClientSession(session models.ClientSession) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO client_sessions
		(client_key, name, preferred_service, preferred_barber, total_appointments, active, last_interaction_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ClientKey, nilIfEmpty(session.Name), nilIfEmpty(session.PreferredService),
		nilIfEmpty(session.PreferredBarber), session.TotalAppointments, session.Active,
		nilIfNilTime(session.LastInteractionAt), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClientSession failed", "error", err, "clientKey", session.ClientKey)
		return fmt.Errorf("failed to save client session %s: %w", session.ClientKey, err)
	}
	slog.Debug("SQLiteStore SaveClientSession succeeded", "clientKey", session.ClientKey, "active", session.Active)
	return nil
}

func (s *SQLiteStore) ListClientSessions() ([]models.ClientSession, error) {
	rows, err := s.db.Query(`SELECT client_key, name, preferred_service, preferred_barber, total_appointments,
		active, last_interaction_at, created_at, updated_at
		FROM client_sessions ORDER BY client_key`)
	if err != nil {
		slog.Error("SQLiteStore ListClientSessions failed", "error", err)
		return nil, fmt.Errorf("failed to list client sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ClientSession
	for rows.Next() {
		sess, err := scanClientSessionRows(rows)
		if err != nil {
			slog.Error("SQLiteStore ListClientSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) AddConversationSummary(summary models.ConversationSummary) error {
	_, err := s.db.Exec(`INSERT INTO conversation_summaries (client_key, summary, agent_response, timestamp)
		VALUES (?, ?, ?, ?)`,
		summary.ClientKey, summary.Summary, nilIfEmpty(summary.AgentResponse), summary.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddConversationSummary failed", "error", err, "clientKey", summary.ClientKey)
		return fmt.Errorf("failed to insert conversation summary: %w", err)
	}

	// Trim history beyond the per-client cap.
	_, err = s.db.Exec(`DELETE FROM conversation_summaries
		WHERE client_key = ? AND id NOT IN (
			SELECT id FROM conversation_summaries WHERE client_key = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?)`,
		summary.ClientKey, summary.ClientKey, DefaultSummaryLimit)
	if err != nil {
		slog.Error("SQLiteStore summary trim failed", "error", err, "clientKey", summary.ClientKey)
		return fmt.Errorf("failed to trim conversation summaries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRecentSummaries(clientKey string, limit int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	rows, err := s.db.Query(`SELECT client_key, summary, agent_response, timestamp
		FROM conversation_summaries WHERE client_key = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, clientKey, limit)
	if err != nil {
		slog.Error("SQLiteStore GetRecentSummaries failed", "error", err, "clientKey", clientKey)
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

func (s *SQLiteStore) AddAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(`INSERT INTO appointments (id, client_key, service, start_time, end_time, event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.ClientKey, appt.Service, appt.Start, appt.End, nilIfEmpty(appt.EventID), appt.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddAppointment failed", "error", err, "id", appt.ID)
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	slog.Debug("SQLiteStore AddAppointment succeeded", "id", appt.ID, "clientKey", appt.ClientKey)
	return nil
}

func (s *SQLiteStore) GetAppointmentsByClient(clientKey string) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, client_key, service, start_time, end_time, event_id, created_at
		FROM appointments WHERE client_key = ? ORDER BY start_time`, clientKey)
	if err != nil {
		slog.Error("SQLiteStore GetAppointmentsByClient failed", "error", err, "clientKey", clientKey)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *SQLiteStore) GetAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, client_key, service, start_time, end_time, event_id, created_at
		FROM appointments WHERE start_time >= ? AND start_time < ? ORDER BY start_time`, start, end)
	if err != nil {
		slog.Error("SQLiteStore GetAppointmentsBetween failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *SQLiteStore) DeleteAppointment(id string) error {
	res, err := s.db.Exec(`DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteAppointment failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete appointment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAppointmentMissing
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
