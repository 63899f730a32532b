// Package timeutil provides timezone utilities for the school's local time
// (Europe/Warsaw) and an injectable Clock so that timeouts and pacing delays
// can be driven deterministically in tests.
package timeutil

import (
	"fmt"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo
)

// WarsawTZ is the default school timezone. Unlike a fixed offset it follows
// the CET/CEST switch.
var WarsawTZ = mustLoad("Europe/Warsaw")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("timeutil: load %s: %v", name, err))
	}
	return loc
}

// Layouts used by persisted homework records and chat messages.
const (
	DateLayout     = "02.01.2006"
	DateHourLayout = "02.01.2006 15"
	ClockLayout    = "15:04"
)

// Date creates a civil date (midnight) in the given location.
func Date(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// StartOfDay returns midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// TruncateToHour drops minutes and seconds, keeping the wall-clock hour in loc.
// time.Truncate works on absolute time and is wrong for half-hour offsets.
func TruncateToHour(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
}

// AddDays adds n calendar days, keeping the wall-clock time across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// IsSameDay reports whether a and b fall on the same calendar day in loc.
func IsSameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// MinuteOfDay returns hour*60+minute of t in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// SchoolWeekday converts Go's Sunday-first weekday to the Monday-first index
// used by the timetable (0 = Monday ... 6 = Sunday).
func SchoolWeekday(t time.Time, loc *time.Location) int {
	return (int(t.In(loc).Weekday()) + 6) % 7
}

// ParseDate parses "dd.mm.YYYY" in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}

// ParseDateHour parses "dd.mm.YYYY HH" in loc.
func ParseDateHour(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateHourLayout, value, loc)
}

// FormatDate formats t as "dd.mm.YYYY" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// FormatDateHour formats t as "dd.mm.YYYY HH" in loc.
func FormatDateHour(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateHourLayout)
}

// weekdayNamesPl are indexed Monday-first.
var weekdayNamesPl = [...]string{
	"poniedziałek", "wtorek", "środa", "czwartek", "piątek", "sobota", "niedziela",
}

// WeekdayNamePl returns the Polish name of a Monday-first weekday index.
func WeekdayNamePl(weekday int) string {
	if weekday < 0 || weekday >= len(weekdayNamesPl) {
		return ""
	}
	return weekdayNamesPl[weekday]
}
