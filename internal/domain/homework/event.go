// Package homework contains the homework ledger and the reminder state machine.
package homework

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// DefaultReminderHour is the hour of the day-before reminder.
const DefaultReminderHour = 17

// SnoozeStep is how far a snoozed reminder is pushed.
const SnoozeStep = time.Hour

// idLabelPrefix prefixes event ids in persisted documents and chat output.
const idLabelPrefix = "event-id-"

// State is the reminder lifecycle state of an event.
type State int

const (
	// StatePending waits for reminderTime.
	StatePending State = iota
	// StateReminded has an announcement out and awaits acknowledgement.
	StateReminded
	// StateDone is terminal.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReminded:
		return "reminded"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a homework assignment with a reminder.
type Event struct {
	ID             int
	Title          string
	Group          timetable.GroupTag
	AuthorID       string
	Deadline       time.Time // midnight of the due day
	ReminderTime   time.Time // hour resolution
	ReminderActive bool
}

// NewEvent validates input and builds an unsaved event. A nil reminder means
// 17:00 on the day before the deadline.
func NewEvent(title string, group timetable.GroupTag, authorID string, deadline time.Time, reminder *time.Time, loc *time.Location) (Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Event{}, shared.ErrEventTitleEmpty
	}
	if !group.Valid() {
		return Event{}, shared.WrapError("homework", "Validate", shared.ErrInvalidInput, "unknown group", shared.ErrUnknownGroup)
	}

	due := timeutil.StartOfDay(deadline, loc)
	var remind time.Time
	if reminder != nil {
		remind = timeutil.TruncateToHour(*reminder, loc)
	} else {
		dayBefore := timeutil.AddDays(due, -1)
		remind = time.Date(dayBefore.Year(), dayBefore.Month(), dayBefore.Day(), DefaultReminderHour, 0, 0, 0, loc)
	}

	return Event{
		Title:          title,
		Group:          group,
		AuthorID:       authorID,
		Deadline:       due,
		ReminderTime:   remind,
		ReminderActive: true,
	}, nil
}

// IDLabel returns the human-readable id, e.g. "event-id-3".
func (e Event) IDLabel() string {
	return IDLabel(e.ID)
}

// IDLabel formats an event id.
func IDLabel(id int) string {
	return idLabelPrefix + strconv.Itoa(id)
}

// ParseIDLabel accepts "event-id-3" or "3".
func ParseIDLabel(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), idLabelPrefix))
	if err != nil || id <= 0 {
		return 0, shared.NewDomainError("homework", "ParseID", shared.ErrInvalidID, fmt.Sprintf("invalid event id %q", s))
	}
	return id, nil
}

// HasCustomReminder reports whether the reminder hour differs from the default.
func (e Event) HasCustomReminder(loc *time.Location) bool {
	return e.ReminderTime.In(loc).Hour() != DefaultReminderHour
}

// Record is the persisted form of an event. Two events are the same
// assignment when their records are equal; the id is not part of it.
type Record struct {
	Title          string `json:"title"`
	Group          string `json:"group"`
	AuthorID       string `json:"author_id"`
	Deadline       string `json:"deadline"`
	ReminderDate   string `json:"reminder_date"`
	ReminderActive bool   `json:"reminder_is_active"`
}

// Record serializes e.
func (e Event) Record(loc *time.Location) Record {
	return Record{
		Title:          e.Title,
		Group:          string(e.Group),
		AuthorID:       e.AuthorID,
		Deadline:       timeutil.FormatDate(e.Deadline, loc),
		ReminderDate:   timeutil.FormatDateHour(e.ReminderTime, loc),
		ReminderActive: e.ReminderActive,
	}
}

// FromRecord restores an event. id comes from the record's key.
func FromRecord(id int, r Record, loc *time.Location) (Event, error) {
	group, err := timetable.ParseGroupTag(r.Group)
	if err != nil {
		return Event{}, err
	}
	deadline, err := timeutil.ParseDate(r.Deadline, loc)
	if err != nil {
		return Event{}, shared.WrapError("homework", "FromRecord", shared.ErrInvalidFormat, "bad deadline", err)
	}
	reminder, err := timeutil.ParseDateHour(r.ReminderDate, loc)
	if err != nil {
		return Event{}, shared.WrapError("homework", "FromRecord", shared.ErrInvalidFormat, "bad reminder date", err)
	}
	return Event{
		ID:             id,
		Title:          r.Title,
		Group:          group,
		AuthorID:       r.AuthorID,
		Deadline:       deadline,
		ReminderTime:   reminder,
		ReminderActive: r.ReminderActive,
	}, nil
}
