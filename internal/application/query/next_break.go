// Package query contains the read operations behind chat commands.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/timetable"
)

// ══════════════════════════════════════════════════════════════════════════════
// NEXT BREAK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// Replies that do not depend on the timetable.
const (
	NoLessonsLeftReply = notification.EmojiInfo + " Dzisiaj już nie ma dla Ciebie żadnych lekcji!"
	AfterLessonsReply  = notification.EmojiInfo + " Już jest po lekcjach!"
)

// NextBreakQuery asks when the user's next break starts.
type NextBreakQuery struct {
	// At is the moment asked about.
	At time.Time

	// Memberships are the user's groups.
	Memberships []timetable.GroupTag
}

// NextBreakResult contains the answer.
type NextBreakResult struct {
	Break timetable.BreakInfo

	// MinutesLeft is the time until the break, rounded up.
	MinutesLeft int

	// Length is the break length in minutes; zero for the last break.
	Length int

	Reply string
}

// NextBreakHandler handles NextBreakQuery.
type NextBreakHandler struct {
	resolver *timetable.Resolver
}

// NewNextBreakHandler creates a new NextBreakHandler.
func NewNextBreakHandler(resolver *timetable.Resolver) *NextBreakHandler {
	return &NextBreakHandler{resolver: resolver}
}

// Handle executes the query.
func (h *NextBreakHandler) Handle(_ context.Context, q NextBreakQuery) (*NextBreakResult, error) {
	if pos := h.resolver.ResolvePeriod(q.At, q.Memberships); !pos.IsToday {
		return &NextBreakResult{Reply: AfterLessonsReply}, nil
	}

	info := h.resolver.NextBreak(q.At, q.Memberships)
	if !info.LessonsLeft {
		return &NextBreakResult{Break: info, Reply: NoLessonsLeftReply}, nil
	}

	res := &NextBreakResult{
		Break:       info,
		MinutesLeft: int((info.Start.Sub(q.At) + time.Minute - time.Nanosecond) / time.Minute),
	}

	loc := h.resolver.Location()
	start := info.Start.In(loc).Format("15:04")
	if info.Last {
		res.Reply = fmt.Sprintf("%s Następna przerwa jest za %s o __%s__ i jest to ostatnia przerwa.",
			notification.EmojiInfo, Duration(res.MinutesLeft), start)
		return res, nil
	}

	res.Length = int(info.End.Sub(info.Start) / time.Minute)
	res.Reply = fmt.Sprintf("%s Następna przerwa jest za %s o __%s—%s__ (%d min).",
		notification.EmojiInfo, Duration(res.MinutesLeft), start, info.End.In(loc).Format("15:04"), res.Length)
	return res, nil
}

// Duration renders minutes in Polish, e.g. "1 godzinę 5 minut".
func Duration(minutes int) string {
	hours, mins := minutes/60, minutes%60
	switch {
	case hours == 0:
		return Conjugate(mins, "minut")
	case mins == 0:
		return Conjugate(hours, "godzin")
	default:
		return Conjugate(hours, "godzin") + " " + Conjugate(mins, "minut")
	}
}

// Conjugate appends the Polish accusative ending for n to a noun stem such
// as "minut": 1 minutę, 2 minuty, 5 minut, 22 minuty.
func Conjugate(n int, stem string) string {
	suffix := ""
	switch last, tens := n%10, n%100; {
	case n == 1:
		suffix = "ę"
	case last >= 2 && last <= 4 && (tens < 12 || tens > 14):
		suffix = "y"
	}
	return fmt.Sprintf("%d %s%s", n, stem, suffix)
}
