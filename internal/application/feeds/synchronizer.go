package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/application/state"
	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// LuckyNumbersSource fetches the lucky-numbers feed.
type LuckyNumbersSource interface {
	Fetch(ctx context.Context, bypassCooldown bool) (feed.LuckyNumbers, error)
}

// SubstitutionsSource fetches the substitutions page.
type SubstitutionsSource interface {
	Fetch(ctx context.Context, bypassCooldown bool) (feed.Substitutions, error)
}

// PriceSource quotes a marketplace item in minor units.
type PriceSource interface {
	Price(ctx context.Context, item string) (int, error)
}

// AlertRecorder counts price alerts.
type AlertRecorder interface {
	RecordPriceAlert()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Synchronizer.
type Config struct {
	// GeneralChannel receives lucky-number announcements.
	GeneralChannel string

	// AdminChannel receives price alerts.
	AdminChannel string

	// LogChannel receives operator escalations.
	LogChannel string

	// SubstitutionsChannel receives substitution summaries. Empty disables
	// announcing them; changes are still logged.
	SubstitutionsChannel string

	// OperatorID is mentioned on escalations.
	OperatorID string

	// Class is the class whose substitutions are summarized, e.g. "IID".
	Class string

	// Pacing separates consecutive upstream calls within one poll.
	Pacing time.Duration

	// LuckyNumbersTTL bounds the age of lucky numbers served by Current.
	LuckyNumbersTTL time.Duration
}

// DefaultConfig returns the production pacing and TTL.
func DefaultConfig() Config {
	return Config{
		Pacing:          3 * time.Second,
		LuckyNumbersTTL: 24 * time.Hour,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNCHRONIZER
// ══════════════════════════════════════════════════════════════════════════════

// Synchronizer polls the external feeds, detects changes and announces them.
type Synchronizer struct {
	cfg       Config
	state     *state.State
	connector notification.Connector
	lucky     LuckyNumbersSource
	subs      SubstitutionsSource
	prices    PriceSource
	clock     timeutil.Clock
	logger    *zap.Logger
	recorder  AlertRecorder

	luckyCache *Cache[feed.LuckyNumbers]
	subsCache  *Cache[feed.Substitutions]

	// subsPolled is set by the first successful substitutions poll. User
	// queries fill subsCache too, so its contents cannot tell.
	subsPolled atomic.Bool
}

// Deps groups the collaborators of a Synchronizer.
type Deps struct {
	State         *state.State
	Connector     notification.Connector
	LuckyNumbers  LuckyNumbersSource
	Substitutions SubstitutionsSource
	Prices        PriceSource
	Clock         timeutil.Clock
	Logger        *zap.Logger
	Recorder      AlertRecorder
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(cfg Config, deps Deps) *Synchronizer {
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Synchronizer{
		cfg:       cfg,
		state:     deps.State,
		connector: deps.Connector,
		lucky:     deps.LuckyNumbers,
		subs:      deps.Substitutions,
		prices:    deps.Prices,
		clock:     deps.Clock,
		logger:    deps.Logger,
		recorder:  deps.Recorder,
	}

	// Both school feeds are refreshed on every poll, so they skip the
	// cooldown that protects the marketplace.
	s.luckyCache = NewCache(cfg.LuckyNumbersTTL, deps.Clock, func(ctx context.Context) (feed.LuckyNumbers, error) {
		return s.lucky.Fetch(ctx, true)
	})
	s.subsCache = NewCache(0, deps.Clock, func(ctx context.Context) (feed.Substitutions, error) {
		return s.subs.Fetch(ctx, true)
	})
	return s
}

// PollAll runs the market, lucky-numbers and substitutions pollers in that
// order, each preceded by the pacing delay. A failing poller does not stop
// the others. Cancelling ctx aborts the pacing sleeps, so no new work starts.
func (s *Synchronizer) PollAll(ctx context.Context) error {
	var errs []error

	if err := s.PollMarket(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
	}

	if err := s.clock.Sleep(ctx, s.cfg.Pacing); err != nil {
		return err
	}
	if _, err := s.PollLuckyNumbers(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := s.clock.Sleep(ctx, s.cfg.Pacing); err != nil {
		return err
	}
	if _, err := s.PollSubstitutions(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// PollMarket quotes every tracked item and alerts once for each item whose
// price left its band. Alerted items stop being tracked.
func (s *Synchronizer) PollMarket(ctx context.Context) error {
	var items []market.TrackedItem
	s.state.View(func(tx *state.Tx) { items = tx.Items.All() })

	var errs []error
	for _, item := range items {
		if err := s.clock.Sleep(ctx, s.cfg.Pacing); err != nil {
			return err
		}
		if err := s.checkItem(ctx, item); err != nil {
			s.escalate(ctx, "market", err)
			errs = append(errs, fmt.Errorf("item %q: %w", item.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Synchronizer) checkItem(ctx context.Context, item market.TrackedItem) error {
	price, err := s.prices.Price(ctx, item.Name)
	if err != nil {
		return err
	}
	if item.InBand(price) {
		s.logger.Debug("price within band",
			zap.String("item", item.Name),
			zap.Int("price", price),
		)
		return nil
	}

	text := fmt.Sprintf("💵 Uwaga, %s! Przedmiot *%s* kosztuje teraz **%s**.",
		s.connector.MentionUser(item.AuthorID), item.Name, market.FormatPrice(price))
	if _, err := s.connector.SendMessage(ctx, s.cfg.AdminChannel, text); err != nil {
		return fmt.Errorf("send price alert: %w", err)
	}

	err = s.state.Mutate(ctx, func(tx *state.Tx) error {
		tx.Items.Remove(item)
		return nil
	})
	if s.recorder != nil {
		s.recorder.RecordPriceAlert()
	}
	s.logger.Info("price alert sent",
		zap.String("item", item.Name),
		zap.Int("price", price),
		zap.Int("min_price", item.MinPrice),
		zap.Int("max_price", item.MaxPrice),
	)
	return err
}

// PollLuckyNumbers refreshes the lucky numbers and announces a new draw.
// The last announced draw survives restarts, so a restart alone never
// repeats an announcement.
func (s *Synchronizer) PollLuckyNumbers(ctx context.Context) (bool, error) {
	fresh, _, err := s.luckyCache.Refresh(ctx)
	if err != nil {
		s.escalate(ctx, "lucky_numbers", err)
		return false, err
	}

	var last feed.LuckyNumbers
	s.state.View(func(tx *state.Tx) { last = *tx.LuckyNumbers })
	if fresh.Payload.Equal(last) {
		return false, nil
	}

	if _, err := s.connector.SendMessage(ctx, s.cfg.GeneralChannel, fresh.Payload.Announcement()); err != nil {
		err = fmt.Errorf("announce lucky numbers: %w", err)
		s.escalate(ctx, "lucky_numbers", err)
		return false, err
	}

	err = s.state.Mutate(ctx, func(tx *state.Tx) error {
		*tx.LuckyNumbers = fresh.Payload
		return nil
	})
	s.logger.Info("lucky numbers changed",
		zap.String("date", fresh.Payload.Date),
		zap.Ints("numbers", fresh.Payload.Numbers),
	)
	return true, err
}

// PollSubstitutions refreshes the substitutions page. The first successful
// poll of the process always counts as a change, whatever was fetched for
// user queries before it.
func (s *Synchronizer) PollSubstitutions(ctx context.Context) (bool, error) {
	fresh, previous, err := s.subsCache.Refresh(ctx)
	if err != nil {
		s.escalate(ctx, "substitutions", err)
		return false, err
	}

	if fresh.Payload.Error != "" {
		s.logger.Warn("substitutions page only partly understood", zap.String("error", fresh.Payload.Error))
	}
	first := !s.subsPolled.Swap(true)
	if !first && previous != nil && previous.Payload.Equal(fresh.Payload) {
		return false, nil
	}

	s.logger.Info("substitutions changed",
		zap.String("date", fresh.Payload.Date),
		zap.Bool("first_poll", first),
	)
	if s.cfg.SubstitutionsChannel == "" {
		return true, nil
	}
	if _, err := s.connector.SendMessage(ctx, s.cfg.SubstitutionsChannel, fresh.Payload.Summary(s.cfg.Class)); err != nil {
		err = fmt.Errorf("announce substitutions: %w", err)
		s.escalate(ctx, "substitutions", err)
		return true, err
	}
	return true, nil
}

// LuckyNumbers returns the current draw, at most LuckyNumbersTTL old. A
// stale draw is returned along with a *StaleError when refreshing fails.
func (s *Synchronizer) LuckyNumbers(ctx context.Context) (feed.LuckyNumbers, error) {
	return s.luckyCache.Get(ctx)
}

// Substitutions returns the last fetched substitutions, fetching them when
// nothing was fetched yet.
func (s *Synchronizer) Substitutions(ctx context.Context) (feed.Substitutions, error) {
	return s.subsCache.Get(ctx)
}

// escalate logs a poller failure and mentions the operator in the log
// channel. Rate limiting is expected and only logged.
func (s *Synchronizer) escalate(ctx context.Context, poller string, err error) {
	if shared.IsRateLimited(err) {
		s.logger.Info("poller rate limited", zap.String("poller", poller), zap.Error(err))
		return
	}
	s.logger.Error("poller failed", zap.String("poller", poller), zap.Error(err))

	if s.cfg.LogChannel == "" {
		return
	}
	text := fmt.Sprintf("⚠️ %s Nie udało się zaktualizować `%s`: %v", s.connector.MentionUser(s.cfg.OperatorID), poller, err)
	if _, sendErr := s.connector.SendMessage(context.WithoutCancel(ctx), s.cfg.LogChannel, text); sendErr != nil {
		s.logger.Error("operator escalation failed", zap.Error(sendErr))
	}
}
