// Package jobs contains the periodic jobs of the notification engine.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MINUTE TICK JOB
// ══════════════════════════════════════════════════════════════════════════════

// StatusSource describes the current point of the school day.
type StatusSource interface {
	StatusText(t time.Time) string
	IsBoundary(t time.Time) bool
}

// PresenceSetter updates the bot's status line.
type PresenceSetter interface {
	SetPresence(ctx context.Context, text string) error
}

// ReminderScanner sends the reminders that are due.
type ReminderScanner interface {
	Scan(ctx context.Context) (int, error)
}

// MinuteTickJob keeps the status line in step with the timetable and sends due
// homework reminders.
type MinuteTickJob struct {
	status    StatusSource
	presence  PresenceSetter
	reminders ReminderScanner
	clock     timeutil.Clock
	logger    *zap.Logger

	mu         sync.Mutex
	lastStatus string
	published  bool
}

// NewMinuteTickJob creates the job.
func NewMinuteTickJob(status StatusSource, presence PresenceSetter, reminders ReminderScanner, clock timeutil.Clock, logger *zap.Logger) *MinuteTickJob {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MinuteTickJob{
		status:    status,
		presence:  presence,
		reminders: reminders,
		clock:     clock,
		logger:    logger.Named("minute_tick"),
	}
}

// Name returns the job name.
func (j *MinuteTickJob) Name() string { return "minute_tick" }

// Description returns the job description.
func (j *MinuteTickJob) Description() string {
	return "Refreshes the status line at period boundaries and sends due homework reminders"
}

// Run refreshes the status line when needed, then scans for due reminders.
// A failed status update is retried on the next run and does not stop the
// reminder scan.
func (j *MinuteTickJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	presenceErr := j.refreshPresence(ctx, now)

	sent, err := j.reminders.Scan(ctx)
	if sent > 0 {
		j.logger.Info("reminders sent", zap.Int("count", sent))
	}
	if err != nil {
		return fmt.Errorf("scan reminders: %w", err)
	}
	return presenceErr
}

func (j *MinuteTickJob) refreshPresence(ctx context.Context, now time.Time) error {
	text := j.status.StatusText(now)

	j.mu.Lock()
	stale := !j.published || text != j.lastStatus || j.status.IsBoundary(now)
	j.mu.Unlock()
	if !stale {
		return nil
	}

	if err := j.presence.SetPresence(ctx, text); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}

	j.mu.Lock()
	j.lastStatus = text
	j.published = true
	j.mu.Unlock()

	j.logger.Debug("status updated", zap.String("status", text))
	return nil
}

// LastStatus returns the last status line that was published.
func (j *MinuteTickJob) LastStatus() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastStatus
}
