package homework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

var loc = timeutil.WarsawTZ

func day(y int, m time.Month, d int) time.Time {
	return timeutil.Date(y, m, d, loc)
}

func mustEvent(t *testing.T, title string, deadline time.Time) Event {
	t.Helper()
	e, err := NewEvent(title, timetable.GroupEveryone, "42", deadline, nil, loc)
	require.NoError(t, err)
	return e
}

func TestNewEvent_DefaultReminder(t *testing.T) {
	e := mustEvent(t, "Zadanie z matematyki", day(2024, 12, 31))

	assert.Equal(t, time.Date(2024, 12, 30, 17, 0, 0, 0, loc), e.ReminderTime)
	assert.True(t, e.ReminderActive)
	assert.False(t, e.HasCustomReminder(loc))

	custom := time.Date(2024, 12, 31, 7, 25, 0, 0, loc)
	e, err := NewEvent("Referat", timetable.Group1, "42", day(2024, 12, 31), &custom, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 7, 0, 0, 0, loc), e.ReminderTime)
	assert.True(t, e.HasCustomReminder(loc))
}

func TestNewEvent_Validation(t *testing.T) {
	_, err := NewEvent("   ", timetable.GroupEveryone, "42", day(2024, 12, 31), nil, loc)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewEvent("x", timetable.GroupTag("grupa_9"), "42", day(2024, 12, 31), nil, loc)
	assert.True(t, shared.IsValidation(err))
}

func TestLedger_InsertOrdersByDeadlineAndKeepsArrivalOrderForTies(t *testing.T) {
	l := NewLedger(loc)

	a := l.Insert(mustEvent(t, "A", day(2025, 1, 10)))
	b := l.Insert(mustEvent(t, "B", day(2025, 1, 5)))
	c := l.Insert(mustEvent(t, "C", day(2025, 1, 10)))
	d := l.Insert(mustEvent(t, "D", day(2025, 1, 7)))

	var titles []string
	for _, e := range l.Events() {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, titles)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{a.ID, b.ID, c.ID, d.ID})
}

func TestLedger_IDsAreNeverReused(t *testing.T) {
	l := NewLedger(loc)
	l.Insert(mustEvent(t, "A", day(2025, 1, 1)))
	last := l.Insert(mustEvent(t, "B", day(2025, 1, 2)))

	_, err := l.Delete(last.ID)
	require.NoError(t, err)

	next := l.Insert(mustEvent(t, "C", day(2025, 1, 3)))
	assert.Equal(t, 3, next.ID)

	l.RestoreNextID(2)
	assert.Equal(t, 4, l.NextID())
}

func TestLedger_DeleteMissing(t *testing.T) {
	l := NewLedger(loc)
	_, err := l.Delete(7)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedger_ReconcileIsIdempotent(t *testing.T) {
	l := NewLedger(loc)
	stale := l.Insert(mustEvent(t, "stale", day(2025, 1, 1)))
	kept := l.Insert(mustEvent(t, "kept", day(2025, 1, 2)))

	candidates := []Event{kept, mustEvent(t, "new", day(2025, 1, 3))}

	added, removed := l.Reconcile(candidates)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	snapshot := l.Serialize()
	added, removed = l.Reconcile(candidates)
	assert.Zero(t, added)
	assert.Zero(t, removed)
	assert.Equal(t, snapshot, l.Serialize())

	_, ok := l.Get(stale.ID)
	assert.False(t, ok)
	got, ok := l.Get(kept.ID)
	require.True(t, ok)
	assert.Equal(t, "kept", got.Title)
}

func TestLedger_SerializeRoundTripsThroughRecords(t *testing.T) {
	l := NewLedger(loc)
	e := l.Insert(mustEvent(t, "Zadanie z matematyki", day(2024, 12, 31)))

	records := l.Serialize()
	require.Contains(t, records, "event-id-1")
	r := records["event-id-1"]
	assert.Equal(t, Record{
		Title:          "Zadanie z matematyki",
		Group:          "grupa_0",
		AuthorID:       "42",
		Deadline:       "31.12.2024",
		ReminderDate:   "30.12.2024 17",
		ReminderActive: true,
	}, r)

	restored, err := FromRecord(1, r, loc)
	require.NoError(t, err)
	assert.Equal(t, e, restored)
}

func TestReminderStateMachine(t *testing.T) {
	l := NewLedger(loc)
	e := l.Insert(mustEvent(t, "Zadanie z matematyki", day(2024, 12, 31)))
	fireAt := time.Date(2024, 12, 30, 17, 0, 0, 0, loc)

	assert.Empty(t, l.DueReminders(fireAt.Add(-time.Second)))
	due := l.DueReminders(fireAt)
	require.Len(t, due, 1)
	assert.Equal(t, StatePending, l.State(e.ID))

	require.NoError(t, l.MarkReminded(e.ID))
	assert.Equal(t, StateReminded, l.State(e.ID))
	assert.Empty(t, l.DueReminders(fireAt.Add(time.Minute)), "reminded events are not announced twice")
	assert.Error(t, l.MarkReminded(e.ID))

	l.Release(e.ID)
	assert.Len(t, l.DueReminders(fireAt), 1)
	require.NoError(t, l.MarkReminded(e.ID))

	snoozed, err := l.Snooze(e.ID, fireAt.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 30, 18, 0, 0, 0, loc), snoozed.ReminderTime)
	assert.Equal(t, StatePending, l.State(e.ID))
	assert.Empty(t, l.DueReminders(fireAt.Add(30*time.Minute)))
	assert.Len(t, l.DueReminders(snoozed.ReminderTime), 1)

	require.NoError(t, l.MarkReminded(e.ID))
	done, err := l.Complete(e.ID)
	require.NoError(t, err)
	assert.False(t, done.ReminderActive)
	assert.Equal(t, StateDone, l.State(e.ID))
	assert.Empty(t, l.DueReminders(fireAt.Add(48*time.Hour)))

	_, err = l.Complete(e.ID)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	_, err = l.Snooze(e.ID, fireAt)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestTenseOf(t *testing.T) {
	now := time.Date(2024, 12, 30, 17, 0, 0, 0, loc)

	assert.Equal(t, TenseFuture, TenseOf(day(2025, 1, 1), now, loc))
	assert.Equal(t, TenseTomorrow, TenseOf(day(2024, 12, 31), now, loc))
	assert.Equal(t, TenseToday, TenseOf(day(2024, 12, 30), now, loc))
	assert.Equal(t, TensePast, TenseOf(day(2024, 12, 29), now, loc))

	assert.Equal(t, "jutro jest", TenseTomorrow.Phrase("31.12.2024"))
	assert.Equal(t, "29.12.2024 było", TensePast.Phrase("29.12.2024"))
}

func TestParseIDLabel(t *testing.T) {
	id, err := ParseIDLabel("event-id-12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	id, err = ParseIDLabel(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	_, err = ParseIDLabel("event-id-x")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
	assert.Equal(t, "event-id-4", IDLabel(4))
}
