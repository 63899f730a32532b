package homework

import (
	"time"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// Ledger is the ordered set of homework events. Events are sorted by deadline;
// events with the same deadline keep insertion order. Ids are assigned by the
// ledger, grow monotonically and are never reused.
//
// A Ledger is not safe for concurrent use; the owner serialises access.
type Ledger struct {
	loc      *time.Location
	events   []Event
	nextID   int
	reminded map[int]bool
}

// NewLedger creates an empty ledger working in loc.
func NewLedger(loc *time.Location) *Ledger {
	if loc == nil {
		loc = timeutil.WarsawTZ
	}
	return &Ledger{
		loc:      loc,
		nextID:   1,
		reminded: make(map[int]bool),
	}
}

// Location returns the ledger's time zone.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Len returns the number of events.
func (l *Ledger) Len() int {
	return len(l.events)
}

// Events returns a copy of all events in order.
func (l *Ledger) Events() []Event {
	return append([]Event(nil), l.events...)
}

// NextID is the id the next inserted event will receive.
func (l *Ledger) NextID() int {
	return l.nextID
}

// RestoreNextID raises the id counter to at least n. It never lowers it.
func (l *Ledger) RestoreNextID(n int) {
	if n > l.nextID {
		l.nextID = n
	}
}

// Get returns the event with the given id.
func (l *Ledger) Get(id int) (Event, bool) {
	if i := l.index(id); i >= 0 {
		return l.events[i], true
	}
	return Event{}, false
}

// Contains reports whether an event with the same record is present.
func (l *Ledger) Contains(e Event) bool {
	return l.indexOfRecord(e.Record(l.loc)) >= 0
}

// Insert adds e in deadline order and returns it with its id. e keeps its id
// when it is set and unused, otherwise a new one is assigned.
func (l *Ledger) Insert(e Event) Event {
	if e.ID <= 0 || l.index(e.ID) >= 0 {
		e.ID = l.nextID
	}
	if e.ID >= l.nextID {
		l.nextID = e.ID + 1
	}

	pos := len(l.events)
	for i, other := range l.events {
		if e.Deadline.Before(other.Deadline) {
			pos = i
			break
		}
	}

	l.events = append(l.events, Event{})
	copy(l.events[pos+1:], l.events[pos:])
	l.events[pos] = e
	return e
}

// Delete removes the event with id.
func (l *Ledger) Delete(id int) (Event, error) {
	i := l.index(id)
	if i < 0 {
		return Event{}, shared.ErrEventNotFound
	}
	e := l.events[i]
	l.events = append(l.events[:i], l.events[i+1:]...)
	delete(l.reminded, id)
	return e, nil
}

// Reconcile makes the ledger hold exactly the candidates, compared by record.
// Events absent from candidates are removed; candidates not yet present are
// inserted. Running it twice with the same input changes nothing.
func (l *Ledger) Reconcile(candidates []Event) (added, removed int) {
	want := make(map[Record]bool, len(candidates))
	for _, c := range candidates {
		want[c.Record(l.loc)] = true
	}

	kept := l.events[:0]
	for _, e := range l.events {
		if want[e.Record(l.loc)] {
			kept = append(kept, e)
			continue
		}
		delete(l.reminded, e.ID)
		removed++
	}
	l.events = kept

	for _, c := range candidates {
		if l.Contains(c) {
			continue
		}
		l.Insert(c)
		added++
	}
	return added, removed
}

// Serialize returns the persisted records keyed by id label.
func (l *Ledger) Serialize() map[string]Record {
	out := make(map[string]Record, len(l.events))
	for _, e := range l.events {
		out[e.IDLabel()] = e.Record(l.loc)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// State returns the reminder state of id.
func (l *Ledger) State(id int) State {
	i := l.index(id)
	switch {
	case i < 0, !l.events[i].ReminderActive:
		return StateDone
	case l.reminded[id]:
		return StateReminded
	default:
		return StatePending
	}
}

// DueReminders returns pending events whose reminder time has passed.
func (l *Ledger) DueReminders(now time.Time) []Event {
	var due []Event
	for _, e := range l.events {
		if !e.ReminderActive || l.reminded[e.ID] {
			continue
		}
		if !e.ReminderTime.After(now) {
			due = append(due, e)
		}
	}
	return due
}

// MarkReminded moves a pending event to REMINDED so later scans skip it.
func (l *Ledger) MarkReminded(id int) error {
	switch l.State(id) {
	case StatePending:
		l.reminded[id] = true
		return nil
	case StateReminded:
		return shared.NewDomainError("homework", "MarkReminded", shared.ErrStateTransition, "reminder already dispatched")
	default:
		if l.index(id) < 0 {
			return shared.ErrEventNotFound
		}
		return shared.ErrEventClosed
	}
}

// Release returns a REMINDED event to PENDING without moving its reminder,
// so the next scan announces it again. Used when the announcement failed.
func (l *Ledger) Release(id int) {
	delete(l.reminded, id)
}

// Complete deactivates the reminder. DONE is terminal.
func (l *Ledger) Complete(id int) (Event, error) {
	i := l.index(id)
	if i < 0 {
		return Event{}, shared.ErrEventNotFound
	}
	if !l.events[i].ReminderActive {
		return Event{}, shared.ErrEventClosed
	}
	l.events[i].ReminderActive = false
	delete(l.reminded, id)
	return l.events[i], nil
}

// Snooze pushes the reminder to the hour of now+1h and returns the event to
// PENDING.
func (l *Ledger) Snooze(id int, now time.Time) (Event, error) {
	i := l.index(id)
	if i < 0 {
		return Event{}, shared.ErrEventNotFound
	}
	if !l.events[i].ReminderActive {
		return Event{}, shared.ErrEventClosed
	}
	l.events[i].ReminderTime = timeutil.TruncateToHour(now.Add(SnoozeStep), l.loc)
	delete(l.reminded, id)
	return l.events[i], nil
}

func (l *Ledger) index(id int) int {
	for i, e := range l.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) indexOfRecord(r Record) int {
	for i, e := range l.events {
		if e.Record(l.loc) == r {
			return i
		}
	}
	return -1
}
