package timetable

import (
	"strings"
	"time"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// Kind classifies a resolved Position.
type Kind int

const (
	// KindBreak means the position is an upcoming period later today.
	KindBreak Kind = iota
	// KindLesson means a period is in progress.
	KindLesson
	// KindNoneLeftToday means no periods remain today; the position points at
	// the next school day.
	KindNoneLeftToday
)

// Position is where a moment falls in the timetable.
type Position struct {
	IsToday  bool
	Period   int
	Weekday  int
	InLesson bool
}

// Kind returns exactly one classification for p.
func (p Position) Kind() Kind {
	switch {
	case !p.IsToday:
		return KindNoneLeftToday
	case p.InLesson:
		return KindLesson
	default:
		return KindBreak
	}
}

// Lookup is the result of a lesson query. An empty Lookup is the normal
// answer for a free period.
type Lookup struct {
	Period  int
	Lessons []Entry
}

// Found reports whether any lesson matched.
func (l Lookup) Found() bool {
	return len(l.Lessons) > 0
}

// Names returns the unique lesson names in entry order.
func (l Lookup) Names() []string {
	seen := make(map[string]bool, len(l.Lessons))
	var names []string
	for _, e := range l.Lessons {
		name := LessonName(e.LessonCode)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Text renders concurrent lessons as "A/B". When exactly one non-wildcard
// group has the lesson its suffix is appended.
func (l Lookup) Text() string {
	text := strings.Join(l.Names(), "/")
	groups := make(map[GroupTag]bool)
	for _, e := range l.Lessons {
		groups[e.Group] = true
	}
	if len(groups) == 1 {
		g := l.Lessons[0].Group
		if !g.IsEveryone() {
			text += " " + g.Suffix()
		}
	}
	return text
}

// Resolver answers timetable questions in a fixed time zone.
type Resolver struct {
	tt  *Timetable
	loc *time.Location
}

// NewResolver creates a Resolver. A nil location means Europe/Warsaw.
func NewResolver(tt *Timetable, loc *time.Location) *Resolver {
	if loc == nil {
		loc = timeutil.WarsawTZ
	}
	return &Resolver{tt: tt, loc: loc}
}

// Timetable returns the underlying timetable.
func (r *Resolver) Timetable() *Timetable {
	return r.tt
}

// Location returns the resolver's time zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// ResolvePeriod finds the first period today whose end is still ahead of t.
// If t precedes its start the position is a break before it, otherwise t is
// inside the lesson. With no periods left (or on a weekend) the position is
// the first period on the next school day that has a lesson for memberships;
// a nil memberships slice matches any group. Comparison is at minute
// resolution.
func (r *Resolver) ResolvePeriod(t time.Time, memberships []GroupTag) Position {
	weekday := timeutil.SchoolWeekday(t, r.loc)

	if weekday < SchoolDays {
		minute := timeutil.MinuteOfDay(t, r.loc)
		for period, b := range r.tt.boundaries {
			if minute < b.Start.Minutes() {
				return Position{IsToday: true, Period: period, Weekday: weekday}
			}
			if minute < b.End.Minutes() {
				return Position{IsToday: true, Period: period, Weekday: weekday, InLesson: true}
			}
		}
	}

	next := 0
	if weekday < SchoolDays {
		next = (weekday + 1) % SchoolDays
	}
	return Position{Period: r.firstPeriod(next, memberships), Weekday: next}
}

// firstPeriod returns the first period on weekday with a lesson for
// memberships, or -1 when the day is empty.
func (r *Resolver) firstPeriod(weekday int, memberships []GroupTag) int {
	for period := range r.tt.boundaries {
		if memberships == nil {
			if len(r.tt.Entries(weekday, period)) > 0 {
				return period
			}
			continue
		}
		if r.LessonForPeriod(period, weekday, memberships).Found() {
			return period
		}
	}
	return -1
}

// LessonForPeriod returns the lessons at weekday/period for the wildcard plus
// memberships. A wildcard entry wins over group entries.
func (r *Resolver) LessonForPeriod(period, weekday int, memberships []GroupTag) Lookup {
	entries := r.tt.Entries(weekday, period)
	want := candidates(memberships)

	var everyone, groups []Entry
	for _, e := range entries {
		if !want[e.Group] {
			continue
		}
		if e.Group.IsEveryone() {
			everyone = append(everyone, e)
		} else {
			groups = append(groups, e)
		}
	}

	if len(everyone) > 0 {
		return Lookup{Period: period, Lessons: everyone}
	}
	return Lookup{Period: period, Lessons: groups}
}

// NextLessonFrom returns the first lesson at or after period on weekday.
func (r *Resolver) NextLessonFrom(period, weekday int, memberships []GroupTag) Lookup {
	if period < 0 {
		period = 0
	}
	for p := period; p < r.tt.PeriodCount(); p++ {
		if l := r.LessonForPeriod(p, weekday, memberships); l.Found() {
			return l
		}
	}
	return Lookup{Period: -1}
}

// IsBoundary reports whether t falls on the first second of a minute that
// starts or ends a period. Presence is refreshed at these moments.
func (r *Resolver) IsBoundary(t time.Time) bool {
	local := t.In(r.loc)
	return local.Second() == 0 && r.tt.IsBoundaryMinute(timeutil.MinuteOfDay(local, r.loc))
}

// Status texts.
const (
	StatusAfterLessons = "koniec lekcji!"
	StatusWeekend      = "weekend!"
)

// StatusText describes the class's current state for a presence indicator.
// It depends only on t and the timetable.
func (r *Resolver) StatusText(t time.Time) string {
	pos := r.ResolvePeriod(t, nil)
	if !pos.IsToday {
		return r.endOfDayText(t)
	}

	all := AllGroups()
	if pos.InLesson {
		if current := r.LessonForPeriod(pos.Period, pos.Weekday, all); current.Found() {
			b, _ := r.tt.Boundary(pos.Period)
			return current.Text() + " do " + b.End.String()
		}
		// Free period for everyone behaves like a break.
		pos.Period++
	}

	next := r.NextLessonFrom(pos.Period, pos.Weekday, all)
	if !next.Found() {
		return r.endOfDayText(t)
	}
	b, _ := r.tt.Boundary(next.Period)
	if next.Period == r.firstPeriod(pos.Weekday, all) {
		return "szkoła o " + b.Start.String()
	}
	return "przerwa do " + b.Start.String()
}

func (r *Resolver) endOfDayText(t time.Time) string {
	if timeutil.SchoolWeekday(t, r.loc) < 4 {
		return StatusAfterLessons
	}
	return StatusWeekend
}

// BreakInfo describes the next break for a user.
type BreakInfo struct {
	// LessonsLeft is false when the user has no more lessons today.
	LessonsLeft bool
	// Start is when the break begins (end of the current or next lesson).
	Start time.Time
	// End is when the following period begins; zero when Last is true.
	End time.Time
	// Last is true when no period follows the break.
	Last bool
}

// NextBreak finds when the user's current or next lesson ends and how long
// the break after it lasts.
func (r *Resolver) NextBreak(t time.Time, memberships []GroupTag) BreakInfo {
	pos := r.ResolvePeriod(t, memberships)
	if !pos.IsToday {
		return BreakInfo{}
	}

	lesson := r.NextLessonFrom(pos.Period, pos.Weekday, memberships)
	if !lesson.Found() {
		return BreakInfo{}
	}

	b, _ := r.tt.Boundary(lesson.Period)
	info := BreakInfo{
		LessonsLeft: true,
		Start:       r.at(t, b.End),
	}

	after := r.ResolvePeriod(info.Start, nil)
	if !after.IsToday {
		info.Last = true
		return info
	}
	nb, _ := r.tt.Boundary(after.Period)
	info.End = r.at(t, nb.Start)
	return info
}

// at returns the wall-clock time w on t's day.
func (r *Resolver) at(t time.Time, w WallClock) time.Time {
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), w.Hour, w.Minute, 0, 0, r.loc)
}
