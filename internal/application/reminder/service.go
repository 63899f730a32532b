// Package reminder announces due homework and turns the reactions to each
// announcement into completion or snooze.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/application/state"
	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/internal/infrastructure/messaging"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// Outcomes reported to the Recorder.
const (
	OutcomeSent      = "sent"
	OutcomeDone      = "done"
	OutcomeSnoozed   = "snoozed"
	OutcomeTimedOut  = "timed_out"
	OutcomeSendError = "send_error"
)

// Recorder counts reminder outcomes.
type Recorder interface {
	RecordReminder(outcome string)
}

// Config contains configuration for the Service.
type Config struct {
	// Channel receives reminders.
	Channel string

	// BroadcastMention addresses the whole class.
	BroadcastMention string

	// AckTimeout is how long a reminder waits for a reaction before it is
	// snoozed.
	AckTimeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BroadcastMention: "@everyone",
		AckTimeout:       120 * time.Second,
	}
}

// Service dispatches due reminders.
type Service struct {
	cfg       Config
	state     *state.State
	connector notification.Connector
	hub       *messaging.ReactionHub
	clock     timeutil.Clock
	logger    *zap.Logger
	recorder  Recorder

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]*messaging.Wait
}

// NewService creates a Service. logger and recorder may be nil.
func NewService(cfg Config, st *state.State, connector notification.Connector, hub *messaging.ReactionHub, clock timeutil.Clock, logger *zap.Logger, recorder Recorder) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultConfig().AckTimeout
	}
	return &Service{
		cfg:       cfg,
		state:     st,
		connector: connector,
		hub:       hub,
		clock:     clock,
		logger:    logger,
		recorder:  recorder,
		pending:   make(map[string]*messaging.Wait),
	}
}

// Scan announces every reminder that is due. Each announced event stays
// REMINDED until its acknowledgement resolves, so later scans skip it.
// It returns the number of reminders sent.
func (s *Service) Scan(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var due []homework.Event
	s.state.Apply(func(tx *state.Tx) {
		for _, e := range tx.Ledger.DueReminders(now) {
			if err := tx.Ledger.MarkReminded(e.ID); err == nil {
				due = append(due, e)
			}
		}
	})

	var (
		sent int
		errs []error
	)
	for _, e := range due {
		if err := s.remind(ctx, e, now); err != nil {
			errs = append(errs, fmt.Errorf("remind %s: %w", e.IDLabel(), err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Wait blocks until every pending acknowledgement has been handled.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown abandons every pending acknowledgement and waits for them to
// finish, at most until ctx is done. Abandoned reminders stay active and are
// announced again after a restart.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	waits := make([]*messaging.Wait, 0, len(s.pending))
	for _, w := range s.pending {
		waits = append(waits, w)
	}
	s.mu.Unlock()

	for _, w := range waits {
		w.Cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d acknowledgements: %w", len(waits), ctx.Err())
	}
}

func (s *Service) remind(ctx context.Context, e homework.Event, now time.Time) error {
	loc := s.state.Location()
	tense := homework.TenseOf(e.Deadline, now, loc)
	text := fmt.Sprintf("%s Na %s zadanie: **%s**.",
		s.mention(ctx, e.Group), tense.Phrase(timeutil.FormatDate(e.Deadline, loc)), e.Title)

	msg, err := s.connector.SendMessage(ctx, s.cfg.Channel, text)
	if err != nil {
		s.state.Apply(func(tx *state.Tx) { tx.Ledger.Release(e.ID) })
		s.record(OutcomeSendError)
		return err
	}
	s.record(OutcomeSent)

	if err := s.connector.AddReactions(ctx, msg, notification.EmojiCheck, notification.EmojiAlarmClock); err != nil {
		s.logger.Warn("could not offer reactions", zap.Int("event_id", e.ID), zap.Error(err))
	}

	wait := s.hub.Await(msg, func(r notification.Reaction) bool {
		return r.Emoji == notification.EmojiCheck || r.Emoji == notification.EmojiAlarmClock
	}, s.cfg.AckTimeout)

	s.logger.Info("reminder sent",
		zap.Int("event_id", e.ID),
		zap.String("title", e.Title),
		zap.String("tense", string(tense)),
		zap.String("wait_id", wait.ID()),
	)

	s.mu.Lock()
	s.pending[wait.ID()] = wait
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acknowledge(context.WithoutCancel(ctx), e, msg, wait)
	return nil
}

func (s *Service) acknowledge(ctx context.Context, e homework.Event, msg notification.MessageHandle, wait *messaging.Wait) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.pending, wait.ID())
		s.mu.Unlock()
	}()

	r, err := wait.Result(ctx)
	switch {
	case errors.Is(err, messaging.ErrAwaitCancelled):
		// Shutting down. REMINDED is not persisted, so the event is announced
		// again after the restart.
		s.logger.Info("reminder acknowledgement abandoned", zap.Int("event_id", e.ID))
		return
	case err == nil && r.Emoji == notification.EmojiCheck:
		s.complete(ctx, e, msg, r)
	default:
		s.snooze(ctx, e, msg, err != nil)
	}

	if err := s.connector.ClearReactions(ctx, msg); err != nil {
		s.logger.Warn("could not clear reactions", zap.Int("event_id", e.ID), zap.Error(err))
	}
}

func (s *Service) complete(ctx context.Context, e homework.Event, msg notification.MessageHandle, r notification.Reaction) {
	err := s.state.Mutate(ctx, func(tx *state.Tx) error {
		_, err := tx.Ledger.Complete(e.ID)
		return err
	})
	if err != nil {
		s.logger.Warn("could not complete homework", zap.Int("event_id", e.ID), zap.Error(err))
		return
	}
	s.record(OutcomeDone)
	s.logger.Info("homework completed", zap.Int("event_id", e.ID), zap.String("user_id", r.UserID))
	s.edit(ctx, msg, fmt.Sprintf("%s Zaznaczono zadanie `%s` jako odrobione.", notification.EmojiCheck, e.Title))
}

func (s *Service) snooze(ctx context.Context, e homework.Event, msg notification.MessageHandle, timedOut bool) {
	var snoozed homework.Event
	err := s.state.Mutate(ctx, func(tx *state.Tx) error {
		var err error
		snoozed, err = tx.Ledger.Snooze(e.ID, s.clock.Now())
		return err
	})
	if err != nil {
		s.logger.Warn("could not snooze homework", zap.Int("event_id", e.ID), zap.Error(err))
		return
	}

	outcome := OutcomeSnoozed
	if timedOut {
		outcome = OutcomeTimedOut
	}
	s.record(outcome)

	at := snoozed.ReminderTime.In(s.state.Location())
	s.logger.Info("homework reminder snoozed",
		zap.Int("event_id", e.ID),
		zap.Time("reminder_time", at),
		zap.Bool("timed_out", timedOut),
	)
	s.edit(ctx, msg, fmt.Sprintf("%s Przełożono powiadomienie dla zadania `%s` na %02d:00.",
		notification.EmojiAlarmClock, e.Title, at.Hour()))
}

func (s *Service) edit(ctx context.Context, msg notification.MessageHandle, text string) {
	if err := s.connector.EditMessage(ctx, msg, text); err != nil {
		s.logger.Warn("could not edit reminder", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
}

// mention addresses the event's group. An unresolvable role falls back to the
// broadcast mention so the reminder still goes out.
func (s *Service) mention(ctx context.Context, group timetable.GroupTag) string {
	if group.IsEveryone() {
		return s.cfg.BroadcastMention
	}
	m, err := s.connector.ResolveRoleMention(ctx, string(group))
	if err != nil {
		s.logger.Warn("could not resolve role mention", zap.String("group", string(group)), zap.Error(err))
		return s.cfg.BroadcastMention
	}
	return m
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordReminder(outcome)
	}
}
