// Package feed holds the payloads of the external school feeds: lucky numbers
// and lesson substitutions.
package feed

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// LuckyNumbersDateLayout is the upstream date format (dd/mm/YYYY).
const LuckyNumbersDateLayout = "02/01/2006"

// LuckyNumbers is the daily lucky-number draw. Students whose register
// number is drawn are exempt from being examined that day.
type LuckyNumbers struct {
	Date            string   `json:"date"`
	Numbers         []int    `json:"luckyNumbers"`
	ExcludedClasses []string `json:"excludedClasses"`
}

// Equal compares every field.
func (l LuckyNumbers) Equal(other LuckyNumbers) bool {
	return l.Date == other.Date &&
		slices.Equal(l.Numbers, other.Numbers) &&
		slices.Equal(l.ExcludedClasses, other.ExcludedClasses)
}

// IsZero reports whether nothing has been fetched yet.
func (l LuckyNumbers) IsZero() bool {
	return l.Date == "" && len(l.Numbers) == 0 && len(l.ExcludedClasses) == 0
}

// ParsedDate parses Date in loc.
func (l LuckyNumbers) ParsedDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(LuckyNumbersDateLayout, l.Date, loc)
}

// IsExcluded reports whether class (e.g. "IID") is excluded from the draw.
func (l LuckyNumbers) IsExcluded(class string) bool {
	for _, c := range l.ExcludedClasses {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// Announcement renders the chat message for a new draw.
func (l LuckyNumbers) Announcement() string {
	numbers := make([]string, len(l.Numbers))
	for i, n := range l.Numbers {
		numbers[i] = strconv.Itoa(n)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Szczęśliwe numerki na %s: %s", strings.ReplaceAll(l.Date, "/", "."), strings.Join(numbers, ", "))
	if len(l.ExcludedClasses) > 0 {
		fmt.Fprintf(&b, "\nBez szczęśliwego numerka: %s", strings.Join(l.ExcludedClasses, ", "))
	}
	return b.String()
}
