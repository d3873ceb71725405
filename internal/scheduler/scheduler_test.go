package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
	"github.com/zapgenda/zapgenda/internal/store"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []struct{ To, Body string }
	errs map[string]error
}

func (r *recordingSender) SendMessage(ctx context.Context, to string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[to]; ok {
		return err
	}
	r.sent = append(r.sent, struct{ To, Body string }{to, body})
	return nil
}

func TestSchedulerAddJobValidation(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("0 9 * * *", func() {}); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestReminderJobSendsTodayOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	today := models.Appointment{
		ID: "a1", ClientKey: "5511999990000", Service: "corte",
		Start: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 14, 40, 0, 0, time.UTC),
	}
	tomorrow := models.Appointment{
		ID: "a2", ClientKey: "5511988887777", Service: "barba",
		Start: time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 11, 10, 20, 0, 0, time.UTC),
	}
	st.AddAppointment(today)
	st.AddAppointment(tomorrow)

	sender := &recordingSender{}
	job := NewReminderJob(st, sender, time.UTC)
	job.now = func() time.Time { return now }

	job.Run(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "5511999990000" {
		t.Errorf("reminder sent to wrong client: %q", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].Body, "14:00") || !strings.Contains(sender.sent[0].Body, "corte") {
		t.Errorf("unexpected reminder body %q", sender.sent[0].Body)
	}
}

func TestReminderJobContinuesAfterFailure(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	st.AddAppointment(models.Appointment{
		ID: "a1", ClientKey: "111111", Service: "corte",
		Start: time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 10, 40, 0, 0, time.UTC),
	})
	st.AddAppointment(models.Appointment{
		ID: "a2", ClientKey: "222222", Service: "barba",
		Start: time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 11, 20, 0, 0, time.UTC),
	})

	sender := &recordingSender{errs: map[string]error{"111111": errors.New("unreachable")}}
	job := NewReminderJob(st, sender, time.UTC)
	job.now = func() time.Time { return now }

	job.Run(context.Background())

	if len(sender.sent) != 1 || sender.sent[0].To != "222222" {
		t.Errorf("expected delivery to continue past failure, got %+v", sender.sent)
	}
}
