// Package scheduler provides scheduling logic for ZapGenda.
//
// It runs recurring jobs, such as the daily appointment reminder sweep,
// using cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapgenda/zapgenda/internal/store"
)

// DefaultReminderCron fires the reminder sweep every morning at 09:00.
const DefaultReminderCron = "0 9 * * *"

// MessageSender delivers one outbound message.
type MessageSender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// ReminderJob sends each client a reminder for their appointments of the
// current day.
type ReminderJob struct {
	store  store.Store
	sender MessageSender
	loc    *time.Location
	now    func() time.Time
}

// NewReminderJob creates the daily reminder sweep.
func NewReminderJob(st store.Store, sender MessageSender, loc *time.Location) *ReminderJob {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderJob{store: st, sender: sender, loc: loc, now: time.Now}
}

// Run sends reminders for all appointments starting today. Delivery
// failures are logged per client and do not stop the sweep.
func (j *ReminderJob) Run(ctx context.Context) {
	now := j.now().In(j.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, j.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := j.store.GetAppointmentsBetween(dayStart, dayEnd)
	if err != nil {
		slog.Error("Reminder sweep appointment query failed", "error", err)
		return
	}
	slog.Info("Reminder sweep started", "appointments", len(appts), "day", dayStart.Format("02/01/2006"))

	for _, appt := range appts {
		body := fmt.Sprintf("Lembrete: você tem %s hoje às %s. Até logo! 💈",
			appt.Service, appt.Start.In(j.loc).Format("15:04"))
		if err := j.sender.SendMessage(ctx, appt.ClientKey, body); err != nil {
			slog.Error("Reminder delivery failed", "error", err, "clientKey", appt.ClientKey, "id", appt.ID)
			continue
		}
		slog.Debug("Reminder sent", "clientKey", appt.ClientKey, "start", appt.Start)
	}
}
