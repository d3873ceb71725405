package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// registerRoutes attaches the operational endpoints to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/appointments", s.appointmentsHandler)
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// sessionsHandler lists all client sessions.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	sessions, err := s.store.ListClientSessions()
	if err != nil {
		slog.Error("Server.sessionsHandler: failed to list sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

// appointmentsHandler lists appointments. Without query parameters it
// returns today's appointments; "client" filters by client key, and
// "date" (DD/MM/YYYY) selects a specific day.
func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	if clientKey := r.URL.Query().Get("client"); clientKey != "" {
		appts, err := s.store.GetAppointmentsByClient(clientKey)
		if err != nil {
			slog.Error("Server.appointmentsHandler: failed to list by client", "error", err, "clientKey", clientKey)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list appointments"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(appts))
		return
	}

	day := time.Now().In(s.loc)
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("02/01/2006", dateStr, s.loc)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid date, expected DD/MM/YYYY"))
			return
		}
		day = parsed
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := s.store.GetAppointmentsBetween(dayStart, dayEnd)
	if err != nil {
		slog.Error("Server.appointmentsHandler: failed to list by day", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list appointments"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(appts))
}
