package store

import (
	"sort"
	"sync"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// InMemoryStore is a concurrency-safe in-memory Store used when no DSN is
// configured and in tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.ClientSession
	summaries    map[string][]models.ConversationSummary
	appointments map[string]models.Appointment
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:     make(map[string]models.ClientSession),
		summaries:    make(map[string][]models.ConversationSummary),
		appointments: make(map[string]models.Appointment),
	}
}

func (s *InMemoryStore) GetClientSession(clientKey string) (*models.ClientSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[clientKey]; ok {
		copied := sess
		return &copied, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveClientSession(session models.ClientSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ClientKey] = session
	return nil
}

func (s *InMemoryStore) ListClientSessions() ([]models.ClientSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ClientSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientKey < out[j].ClientKey })
	return out, nil
}

func (s *InMemoryStore) AddConversationSummary(summary models.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.summaries[summary.ClientKey], summary)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
	if len(list) > DefaultSummaryLimit {
		list = list[:DefaultSummaryLimit]
	}
	s.summaries[summary.ClientKey] = list
	return nil
}

func (s *InMemoryStore) GetRecentSummaries(clientKey string, limit int) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.summaries[clientKey]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.ConversationSummary, limit)
	copy(out, list[:limit])
	return out, nil
}

func (s *InMemoryStore) AddAppointment(appt models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[appt.ID] = appt
	return nil
}

func (s *InMemoryStore) GetAppointmentsByClient(clientKey string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.ClientKey == clientKey {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *InMemoryStore) GetAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if !a.Start.Before(start) && a.Start.Before(end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *InMemoryStore) DeleteAppointment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[id]; !ok {
		return models.ErrAppointmentMissing
	}
	delete(s.appointments, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
