package feed

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Substitution is one change for a class in one period.
type Substitution struct {
	Groups  []string `json:"groups,omitempty"`
	Details string   `json:"details"`
}

// Table is a titled table embedded in the substitutions post.
type Table struct {
	Heading string `json:"heading"`
	Rows    int    `json:"rows"`
}

// Substitutions is the parsed substitutions page. When the page layout
// cannot be understood, Error is set and the fields parsed so far are kept.
type Substitutions struct {
	Post      map[string]string                 `json:"post,omitempty"`
	Date      string                            `json:"date,omitempty"` // YYYY-MM-DD
	Teachers  []string                          `json:"teachers,omitempty"`
	Misc      string                            `json:"misc,omitempty"`
	Cancelled string                            `json:"cancelled,omitempty"`
	Lessons   map[int]map[string][]Substitution `json:"lessons"`
	Tables    []Table                           `json:"tables"`
	Error     string                            `json:"error,omitempty"`
}

// Equal reports whether both documents are identical.
func (s Substitutions) Equal(other Substitutions) bool {
	return reflect.DeepEqual(s, other)
}

// ForClass returns the substitutions affecting class (e.g. "IID"), keyed by
// period. Class names carrying a profile suffix ("IIDp") match too.
func (s Substitutions) ForClass(class string) map[int][]Substitution {
	out := make(map[int][]Substitution)
	for period, classes := range s.Lessons {
		for name, subs := range classes {
			if name == class || strings.HasPrefix(name, class) && len(name) == len(class)+1 {
				out[period] = append(out[period], subs...)
			}
		}
	}
	return out
}

// Summary renders a chat message listing the changes for class.
func (s Substitutions) Summary(class string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Zastępstwa na %s", s.Date)
	if s.Error != "" {
		b.WriteString(" (nie udało się odczytać całej strony)")
	}

	mine := s.ForClass(class)
	periods := make([]int, 0, len(mine))
	for p := range mine {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	if len(periods) == 0 {
		fmt.Fprintf(&b, "\nBrak zastępstw dla klasy %s.", class)
	}
	for _, p := range periods {
		for _, sub := range mine[p] {
			fmt.Fprintf(&b, "\n%d. lekcja: %s", p, sub.Details)
			if len(sub.Groups) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(sub.Groups, ", "))
			}
		}
	}
	if s.Cancelled != "" {
		b.WriteString("\n" + s.Cancelled)
	}
	return b.String()
}

// FormatClass converts "2d" into "IID": the leading digit becomes Roman
// numerals and the rest is upper-cased.
func FormatClass(name string) (string, error) {
	if len(name) < 2 {
		return "", fmt.Errorf("class name %q is too short", name)
	}
	r := rune(name[0])
	if !unicode.IsDigit(r) {
		return "", fmt.Errorf("class name %q does not start with a number", name)
	}
	year, _ := strconv.Atoi(name[:1])
	return strings.Repeat("I", year) + strings.ToUpper(name[1:]), nil
}
