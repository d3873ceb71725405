package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClientSession(row rowScanner) (*models.ClientSession, error) {
	var sess models.ClientSession
	var name, prefService, prefBarber sql.NullString
	var lastInteraction sql.NullTime
	err := row.Scan(&sess.ClientKey, &name, &prefService, &prefBarber, &sess.TotalAppointments,
		&sess.Active, &lastInteraction, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Name = name.String
	sess.PreferredService = prefService.String
	sess.PreferredBarber = prefBarber.String
	if lastInteraction.Valid {
		t := lastInteraction.Time
		sess.LastInteractionAt = &t
	}
	return &sess, nil
}

func scanClientSessionRows(rows *sql.Rows) (*models.ClientSession, error) {
	sess, err := scanClientSession(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan client session: %w", err)
	}
	return sess, nil
}

func scanAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		var eventID sql.NullString
		if err := rows.Scan(&a.ID, &a.ClientKey, &a.Service, &a.Start, &a.End, &eventID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		a.EventID = eventID.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nilIfNilTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
