// Package state owns the engine's mutable process state: the homework
// ledger, the tracked items and the last lucky-numbers draw.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/snapshot"
	"github.com/class-bell/class-bell/pkg/retry"
)

// SaveRecorder observes every save.
type SaveRecorder interface {
	RecordStateSave(err error)
}

// Tx gives a mutation access to the state. The pointers are only valid
// inside the callback.
type Tx struct {
	Ledger       *homework.Ledger
	Items        *market.Items
	LuckyNumbers *feed.LuckyNumbers
}

// State serializes all mutations behind one mutex. Mutate is the commit
// point: the document is saved after every successful mutation, outside the
// mutex so readers are never blocked by storage.
type State struct {
	mu     sync.Mutex
	saveMu sync.Mutex

	loc    *time.Location
	ledger *homework.Ledger
	items  *market.Items
	lucky  feed.LuckyNumbers

	store    snapshot.Store
	retrier  *retry.Retrier
	logger   *zap.Logger
	recorder SaveRecorder
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *State) { s.logger = l }
}

// WithRecorder sets the save recorder.
func WithRecorder(r SaveRecorder) Option {
	return func(s *State) { s.recorder = r }
}

// WithRetrier overrides the save retry policy.
func WithRetrier(r *retry.Retrier) Option {
	return func(s *State) { s.retrier = r }
}

// New creates an empty State saving into store.
func New(store snapshot.Store, loc *time.Location, opts ...Option) *State {
	s := &State{
		loc:     loc,
		ledger:  homework.NewLedger(loc),
		items:   market.NewItems(nil),
		store:   store,
		retrier: retry.StateStoreRetrier(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the time zone of all civil dates.
func (s *State) Location() *time.Location {
	return s.loc
}

// Restore loads the saved document and reconciles the in-memory state with
// it. Calling it again with an unchanged document changes nothing.
func (s *State) Restore(ctx context.Context) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	events, errs := doc.Events(s.loc)
	for _, e := range errs {
		s.logger.Warn("skipping unreadable homework record", zap.Error(e))
	}

	s.mu.Lock()
	s.ledger.RestoreNextID(doc.NextEventID)
	added, removed := s.ledger.Reconcile(events)
	s.items = market.NewItems(doc.TrackedItems)
	s.lucky = doc.LuckyNumbers
	s.mu.Unlock()

	s.logger.Info("state restored",
		zap.Int("events_added", added),
		zap.Int("events_removed", removed),
		zap.Int("tracked_items", len(doc.TrackedItems)),
	)
	return nil
}

// View runs fn with read access. fn must not mutate.
func (s *State) View(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tx())
}

// Mutate runs fn under the engine lock and saves the result. When fn fails
// nothing is saved and its error is returned unchanged.
func (s *State) Mutate(ctx context.Context, fn func(tx *Tx) error) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if err := fn(s.tx()); err != nil {
		s.mu.Unlock()
		return err
	}
	doc := s.documentLocked()
	s.mu.Unlock()

	return s.save(ctx, doc)
}

// Apply runs fn under the engine lock without saving. It is meant for
// transient changes that are not part of the persisted document.
func (s *State) Apply(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tx())
}

// Persist saves the current state. It is used on shutdown.
func (s *State) Persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	doc := s.documentLocked()
	s.mu.Unlock()

	return s.save(ctx, doc)
}

// Document returns the current persisted form.
func (s *State) Document() snapshot.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked()
}

func (s *State) tx() *Tx {
	return &Tx{Ledger: s.ledger, Items: s.items, LuckyNumbers: &s.lucky}
}

func (s *State) documentLocked() snapshot.Document {
	return snapshot.Document{
		HomeworkEvents: s.ledger.Serialize(),
		TrackedItems:   s.items.All(),
		LuckyNumbers:   s.lucky,
		NextEventID:    s.ledger.NextID(),
	}
}

func (s *State) save(ctx context.Context, doc snapshot.Document) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.store.Save(ctx, doc)
	})
	if s.recorder != nil {
		s.recorder.RecordStateSave(err)
	}
	if err != nil {
		s.logger.Error("state save failed", zap.Error(err))
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
