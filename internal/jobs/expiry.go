// Package jobs runs scheduled background work
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const runTimeout = 5 * time.Minute

// ExpiryReminder sends reminders for cards about to expire
type ExpiryReminder interface {
	RemindExpiringCards(ctx context.Context, withinDays int) (int, error)
}

// ExpiryJob periodically reminds owners about expiring cards
type ExpiryJob struct {
	reminder ExpiryReminder
	days     int
	log      *logrus.Logger
	cron     *cron.Cron
}

// NewExpiryJob creates the job; it does nothing until Start
func NewExpiryJob(reminder ExpiryReminder, days int, log *logrus.Logger) *ExpiryJob {
	return &ExpiryJob{
		reminder: reminder,
		days:     days,
		log:      log,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start schedules the job using a standard five-field cron expression
func (j *ExpiryJob) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() { j.Run(context.Background()) }); err != nil {
		return fmt.Errorf("invalid expiry reminder schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.log.WithField("schedule", schedule).Info("Expiry reminder job scheduled")
	return nil
}

// Stop stops scheduling and returns a context done when a running job finishes
func (j *ExpiryJob) Stop() context.Context {
	return j.cron.Stop()
}

// Run sends one round of reminders and returns the number sent
func (j *ExpiryJob) Run(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	sent, err := j.reminder.RemindExpiringCards(ctx, j.days)
	if err != nil {
		j.log.WithError(err).Error("Expiry reminder run failed")
		return sent
	}
	j.log.WithFields(logrus.Fields{"days": j.days, "sent": sent}).Info("Expiry reminder run finished")
	return sent
}
