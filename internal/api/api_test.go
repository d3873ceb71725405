package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
	"github.com/zapgenda/zapgenda/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return &Server{store: st, loc: time.UTC}, st
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Status != "ok" {
		t.Errorf("expected ok status, got %+v", resp)
	}

	rec = httptest.NewRecorder()
	s.healthHandler(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestSessionsHandler(t *testing.T) {
	s, st := newTestServer(t)
	st.SaveClientSession(models.ClientSession{ClientKey: "5511999990000", Active: true})

	rec := httptest.NewRecorder()
	s.sessionsHandler(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	sessions, ok := resp.Result.([]interface{})
	if !ok || len(sessions) != 1 {
		t.Errorf("expected 1 session in result, got %+v", resp.Result)
	}
}

func TestAppointmentsHandlerByDay(t *testing.T) {
	s, st := newTestServer(t)
	st.AddAppointment(models.Appointment{
		ID: "a1", ClientKey: "55", Service: "corte",
		Start: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 14, 40, 0, 0, time.UTC),
	})
	st.AddAppointment(models.Appointment{
		ID: "a2", ClientKey: "55", Service: "barba",
		Start: time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 11, 10, 20, 0, 0, time.UTC),
	})

	rec := httptest.NewRecorder()
	s.appointmentsHandler(rec, httptest.NewRequest(http.MethodGet, "/appointments?date=10/06/2025", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	appts, ok := resp.Result.([]interface{})
	if !ok || len(appts) != 1 {
		t.Errorf("expected 1 appointment on 10/06, got %+v", resp.Result)
	}

	rec = httptest.NewRecorder()
	s.appointmentsHandler(rec, httptest.NewRequest(http.MethodGet, "/appointments?date=junho", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestAppointmentsHandlerByClient(t *testing.T) {
	s, st := newTestServer(t)
	st.AddAppointment(models.Appointment{
		ID: "a1", ClientKey: "5511999990000", Service: "corte",
		Start: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 14, 40, 0, 0, time.UTC),
	})
	st.AddAppointment(models.Appointment{
		ID: "a2", ClientKey: "5511988887777", Service: "barba",
		Start: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 15, 20, 0, 0, time.UTC),
	})

	rec := httptest.NewRecorder()
	s.appointmentsHandler(rec, httptest.NewRequest(http.MethodGet, "/appointments?client=5511999990000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	appts, ok := resp.Result.([]interface{})
	if !ok || len(appts) != 1 {
		t.Errorf("expected 1 appointment for client, got %+v", resp.Result)
	}
}

func TestBuildStoreDefaultsToInMemory(t *testing.T) {
	st, err := buildStore(nil)
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", st)
	}
}

func TestBuildMessagingServiceUnknownTransport(t *testing.T) {
	if _, err := buildMessagingService("telegraph", nil, nil); err == nil {
		t.Error("expected error for unknown transport")
	}
}
