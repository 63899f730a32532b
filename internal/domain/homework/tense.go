package homework

import (
	"time"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// Tense selects the wording of a reminder relative to the deadline.
type Tense string

const (
	TenseFuture   Tense = "future"
	TenseTomorrow Tense = "tomorrow"
	TenseToday    Tense = "today"
	TensePast     Tense = "past"
)

// TenseOf compares the deadline's day with today and tomorrow in loc.
// Reminders can fire late after downtime, so every tense is reachable.
func TenseOf(deadline, now time.Time, loc *time.Location) Tense {
	today := timeutil.StartOfDay(now, loc)
	tomorrow := timeutil.AddDays(today, 1)
	due := timeutil.StartOfDay(deadline, loc)

	switch {
	case due.After(tomorrow):
		return TenseFuture
	case due.Equal(tomorrow):
		return TenseTomorrow
	case due.Equal(today):
		return TenseToday
	default:
		return TensePast
	}
}

// Phrase is the "Na ... zadanie" fragment, e.g. "jutro jest".
func (t Tense) Phrase(deadline string) string {
	switch t {
	case TenseToday:
		return "dziś jest"
	case TenseTomorrow:
		return "jutro jest"
	case TensePast:
		return deadline + " było"
	default:
		return deadline + " jest"
	}
}
