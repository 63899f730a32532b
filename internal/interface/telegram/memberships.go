package telegram

import (
	"fmt"
	"strings"

	"github.com/class-bell/class-bell/internal/domain/timetable"
)

// Memberships maps chat user ids to the groups they attend. Telegram has no
// roles, so the class's group lists come from configuration.
type Memberships map[string][]timetable.GroupTag

// ParseMemberships reads "id=grupa_1+grupa_es, id2=grupa_2".
func ParseMemberships(s string) (Memberships, error) {
	out := make(Memberships)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, groups, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("membership %q: expected id=group+group", entry)
		}
		for _, g := range strings.Split(groups, "+") {
			tag, err := timetable.ParseGroupTag(strings.TrimSpace(g))
			if err != nil {
				return nil, fmt.Errorf("membership %q: %w", entry, err)
			}
			out[strings.TrimSpace(id)] = append(out[strings.TrimSpace(id)], tag)
		}
	}
	return out, nil
}

// Groups returns the user's groups; unknown users only attend whole-class
// lessons.
func (m Memberships) Groups(userID string) []timetable.GroupTag {
	return m[userID]
}
