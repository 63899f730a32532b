package timetable

import (
	"strconv"
	"strings"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ParseWeekday reads a school day typed by a user: its number (1 = Monday)
// or a prefix of its Polish name, e.g. "3", "śr" or "piątek".
func ParseWeekday(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > SchoolDays {
			return 0, false
		}
		return n - 1, true
	}
	for day := 0; day < SchoolDays; day++ {
		if strings.HasPrefix(timeutil.WeekdayNamePl(day), s) {
			return day, true
		}
	}
	return 0, false
}

// NextSchoolDay returns the school day after weekday; Friday and the weekend
// roll over to Monday.
func NextSchoolDay(weekday int) int {
	if weekday < SchoolDays-1 {
		return weekday + 1
	}
	return 0
}

var onWeekday = [SchoolDays]string{"w poniedziałek", "we wtorek", "w środę", "w czwartek", "w piątek"}

// OnWeekday renders "on <day>" in Polish, e.g. "we wtorek".
func OnWeekday(weekday int) string {
	if weekday < 0 || weekday >= SchoolDays {
		return ""
	}
	return onWeekday[weekday]
}
