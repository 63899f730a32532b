package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/snapshot"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/internal/infrastructure/persistence/memory"
	"github.com/class-bell/class-bell/pkg/retry"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

var loc = timeutil.WarsawTZ

func event(t *testing.T, title string, d int) homework.Event {
	t.Helper()
	e, err := homework.NewEvent(title, timetable.Group1, "7", time.Date(2024, 12, d, 0, 0, 0, 0, loc), nil, loc)
	require.NoError(t, err)
	return e
}

type failingStore struct {
	snapshot.Store
	saves int
}

func (f *failingStore) Save(context.Context, snapshot.Document) error {
	f.saves++
	return errors.New("disk full")
}

type countingRecorder struct{ ok, failed int }

func (c *countingRecorder) RecordStateSave(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func TestState_MutatePersists(t *testing.T) {
	store := memory.NewStateStore()
	rec := &countingRecorder{}
	s := New(store, loc, WithRecorder(rec))
	ctx := context.Background()

	err := s.Mutate(ctx, func(tx *Tx) error {
		tx.Ledger.Insert(event(t, "Zad. 1", 31))
		return tx.Items.Track(market.TrackedItem{Name: "Glove Case", MinPrice: 100, MaxPrice: 300})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, 1, rec.ok)

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc.HomeworkEvents, "event-id-1")
	assert.Equal(t, 2, doc.NextEventID)
	assert.Len(t, doc.TrackedItems, 1)
}

func TestState_FailedMutationIsNotSaved(t *testing.T) {
	store := memory.NewStateStore()
	s := New(store, loc)

	err := s.Mutate(context.Background(), func(tx *Tx) error {
		_, err := tx.Ledger.Delete(42)
		return err
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 0, store.Saves())
}

func TestState_RestoreIsIdempotent(t *testing.T) {
	store := memory.NewStateStore()
	ctx := context.Background()

	writer := New(store, loc)
	require.NoError(t, writer.Mutate(ctx, func(tx *Tx) error {
		tx.Ledger.Insert(event(t, "Zad. 1", 31))
		tx.Ledger.Insert(event(t, "Zad. 2", 30))
		deleted := tx.Ledger.Insert(event(t, "Zad. 3", 29))
		_, err := tx.Ledger.Delete(deleted.ID)
		return err
	}))

	reader := New(store, loc)
	require.NoError(t, reader.Restore(ctx))
	first := reader.Document()
	require.NoError(t, reader.Restore(ctx))
	assert.Equal(t, first, reader.Document())

	assert.Equal(t, 4, first.NextEventID)
	reader.View(func(tx *Tx) {
		events := tx.Ledger.Events()
		require.Len(t, events, 2)
		assert.Equal(t, "Zad. 2", events[0].Title)
	})
}

func TestState_SaveFailureIsReported(t *testing.T) {
	store := &failingStore{Store: memory.NewStateStore()}
	rec := &countingRecorder{}
	s := New(store, loc,
		WithRecorder(rec),
		WithRetrier(retry.New(retry.WithMaxAttempts(2), retry.WithInitialDelay(time.Millisecond))),
	)

	err := s.Persist(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, 1, rec.failed)
}
