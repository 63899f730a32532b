package query

import (
	"context"
	"fmt"
	"time"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NEXT LESSON QUERY
// ══════════════════════════════════════════════════════════════════════════════

// NoLessonFoundReply answers when the user's groups have no lessons at all.
const NoLessonFoundReply = notification.EmojiCross + " Nie znaleziono żadnych lekcji dla Twojej grupy."

// NextLessonQuery asks for the user's next lesson.
type NextLessonQuery struct {
	// At is the moment asked about.
	At time.Time

	// Memberships are the user's groups.
	Memberships []timetable.GroupTag
}

// NextLessonResult contains the answer.
type NextLessonResult struct {
	Lesson timetable.Lookup

	// Weekday is the school day of the lesson.
	Weekday int

	// IsToday is false when the lesson is on a later school day.
	IsToday bool

	Reply string
}

// NextLessonHandler handles NextLessonQuery.
type NextLessonHandler struct {
	resolver *timetable.Resolver
}

// NewNextLessonHandler creates a new NextLessonHandler.
func NewNextLessonHandler(resolver *timetable.Resolver) *NextLessonHandler {
	return &NextLessonHandler{resolver: resolver}
}

// Handle executes the query. A lesson in progress does not count: the answer
// is the one after it, on the next school day if needed.
func (h *NextLessonHandler) Handle(_ context.Context, q NextLessonQuery) (*NextLessonResult, error) {
	loc := h.resolver.Location()
	pos := h.resolver.ResolvePeriod(q.At, q.Memberships)

	res := &NextLessonResult{Weekday: pos.Weekday, IsToday: pos.IsToday}
	if pos.IsToday {
		from := pos.Period
		if pos.InLesson {
			from++
		}
		res.Lesson = h.resolver.NextLessonFrom(from, pos.Weekday, q.Memberships)
		if !res.Lesson.Found() {
			res.IsToday = false
			res.Weekday = timetable.NextSchoolDay(pos.Weekday)
		}
	}
	if !res.IsToday {
		res.Lesson = h.resolver.NextLessonFrom(0, res.Weekday, q.Memberships)
	}
	if !res.Lesson.Found() {
		res.Reply = NoLessonFoundReply
		return res, nil
	}

	b, _ := h.resolver.Timetable().Boundary(res.Lesson.Period)
	when := ""
	if !res.IsToday {
		when = " " + timetable.OnWeekday(res.Weekday)
		if timeutil.SchoolWeekday(q.At.AddDate(0, 0, 1), loc) == res.Weekday {
			when = " jutro"
		}
	}
	res.Reply = fmt.Sprintf("%s Następna lekcja to **%s**%s o godzinie __%s__.",
		notification.EmojiInfo, res.Lesson.Text(), when, b.Start)
	return res, nil
}
