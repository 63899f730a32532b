// Package timetable holds the class timetable and resolves wall-clock time into
// timetable positions (current lesson, upcoming break, next school day).
package timetable

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/class-bell/class-bell/internal/domain/shared"
)

// SchoolDays is the number of weekdays that carry lessons (Monday..Friday).
const SchoolDays = 5

// WallClock is a time of day with minute resolution.
type WallClock struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (w WallClock) Minutes() int {
	return w.Hour*60 + w.Minute
}

// String formats as HH:MM.
func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// ParseWallClock parses "H:MM" or "HH:MM".
func ParseWallClock(s string) (WallClock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return WallClock{}, fmt.Errorf("wall clock %q: missing ':'", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return WallClock{}, fmt.Errorf("wall clock %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return WallClock{}, fmt.Errorf("wall clock %q: bad minute", s)
	}
	return WallClock{Hour: hour, Minute: minute}, nil
}

// Boundary is the start and end of one period.
type Boundary struct {
	Start WallClock
	End   WallClock
}

// String formats as "08:00-08:45".
func (b Boundary) String() string {
	return b.Start.String() + "-" + b.End.String()
}

// Length is the period duration in minutes.
func (b Boundary) Length() int {
	return b.End.Minutes() - b.Start.Minutes()
}

// Entry is one lesson slot. Several entries may share a weekday and period.
type Entry struct {
	Weekday    int
	Period     int
	Group      GroupTag
	LessonCode string
}

// Timetable is immutable after construction.
type Timetable struct {
	boundaries []Boundary
	// days[weekday][period] lists the entries in declaration order.
	days [SchoolDays][][]Entry
}

// New validates boundaries and entries and builds a Timetable.
// Boundaries must be strictly increasing and non-overlapping; entries must
// reference a school day, an existing period and a known group.
func New(boundaries []Boundary, entries []Entry) (*Timetable, error) {
	for i, b := range boundaries {
		if b.End.Minutes() <= b.Start.Minutes() {
			return nil, fmt.Errorf("period %d (%s): %w", i, b, shared.ErrInvalidBoundary)
		}
		if i > 0 && b.Start.Minutes() < boundaries[i-1].End.Minutes() {
			return nil, fmt.Errorf("period %d (%s) overlaps period %d: %w", i, b, i-1, shared.ErrInvalidBoundary)
		}
	}

	tt := &Timetable{boundaries: append([]Boundary(nil), boundaries...)}
	for d := range tt.days {
		tt.days[d] = make([][]Entry, len(boundaries))
	}

	for _, e := range entries {
		if e.Weekday < 0 || e.Weekday >= SchoolDays {
			return nil, fmt.Errorf("entry %q: weekday %d is not a school day: %w", e.LessonCode, e.Weekday, shared.ErrInvalidTimetable)
		}
		if e.Period < 0 || e.Period >= len(boundaries) {
			return nil, fmt.Errorf("entry %q: period %d has no boundary: %w", e.LessonCode, e.Period, shared.ErrInvalidTimetable)
		}
		if !e.Group.Valid() {
			return nil, fmt.Errorf("entry %q: group %q: %w", e.LessonCode, e.Group, shared.ErrUnknownGroup)
		}
		if strings.TrimSpace(e.LessonCode) == "" {
			return nil, fmt.Errorf("entry on day %d period %d: empty lesson code: %w", e.Weekday, e.Period, shared.ErrInvalidTimetable)
		}
		tt.days[e.Weekday][e.Period] = append(tt.days[e.Weekday][e.Period], e)
	}

	return tt, nil
}

// document is the on-disk JSON shape:
//
//	{"periods": [["08:00","08:45"], ...],
//	 "weekdays": [[[{"name":"mat","group":"grupa_0"}], [], ...], ... five days]}
type document struct {
	Periods  [][2]string        `json:"periods"`
	Weekdays [][][]lessonRecord `json:"weekdays"`
}

type lessonRecord struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Parse builds a Timetable from its JSON document.
func Parse(data []byte) (*Timetable, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, shared.WrapError("timetable", "Parse", shared.ErrInvalidFormat, "decode timetable", err)
	}
	if len(doc.Weekdays) > SchoolDays {
		return nil, fmt.Errorf("%d weekdays declared: %w", len(doc.Weekdays), shared.ErrInvalidTimetable)
	}

	boundaries := make([]Boundary, 0, len(doc.Periods))
	for i, p := range doc.Periods {
		start, err := ParseWallClock(p[0])
		if err != nil {
			return nil, fmt.Errorf("period %d: %v: %w", i, err, shared.ErrInvalidTimetable)
		}
		end, err := ParseWallClock(p[1])
		if err != nil {
			return nil, fmt.Errorf("period %d: %v: %w", i, err, shared.ErrInvalidTimetable)
		}
		boundaries = append(boundaries, Boundary{Start: start, End: end})
	}

	var entries []Entry
	for day, periods := range doc.Weekdays {
		for period, lessons := range periods {
			for _, l := range lessons {
				entries = append(entries, Entry{
					Weekday:    day,
					Period:     period,
					Group:      GroupTag(l.Group),
					LessonCode: l.Name,
				})
			}
		}
	}

	return New(boundaries, entries)
}

// PeriodCount returns the number of periods per day.
func (t *Timetable) PeriodCount() int {
	return len(t.boundaries)
}

// Boundary returns the boundary of a period.
func (t *Timetable) Boundary(period int) (Boundary, bool) {
	if period < 0 || period >= len(t.boundaries) {
		return Boundary{}, false
	}
	return t.boundaries[period], true
}

// Boundaries returns a copy of all period boundaries.
func (t *Timetable) Boundaries() []Boundary {
	return append([]Boundary(nil), t.boundaries...)
}

// Entries returns the entries at weekday/period. Weekend days resolve to
// Monday's table.
func (t *Timetable) Entries(weekday, period int) []Entry {
	weekday = schoolDay(weekday)
	if period < 0 || period >= len(t.boundaries) {
		return nil
	}
	return append([]Entry(nil), t.days[weekday][period]...)
}

// IsBoundaryMinute reports whether minuteOfDay is the start or end of any period.
func (t *Timetable) IsBoundaryMinute(minuteOfDay int) bool {
	for _, b := range t.boundaries {
		if b.Start.Minutes() == minuteOfDay || b.End.Minutes() == minuteOfDay {
			return true
		}
	}
	return false
}

// schoolDay maps Saturday and Sunday to Monday.
func schoolDay(weekday int) int {
	if weekday < 0 || weekday >= SchoolDays {
		return 0
	}
	return weekday
}
