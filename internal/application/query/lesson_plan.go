package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PLAN QUERY
// ══════════════════════════════════════════════════════════════════════════════

// LessonPlanQuery asks for the whole timetable of one school day.
type LessonPlanQuery struct {
	// At picks the day when Day is empty. Weekends show Monday.
	At time.Time

	// Day is a weekday number (1-5) or a prefix of its Polish name.
	Day string
}

// LessonPlanResult contains the answer.
type LessonPlanResult struct {
	Weekday int

	// Lessons holds one lookup per period that has anything scheduled.
	Lessons []timetable.Lookup

	Reply string
}

// LessonPlanHandler handles LessonPlanQuery.
type LessonPlanHandler struct {
	resolver *timetable.Resolver
}

// NewLessonPlanHandler creates a new LessonPlanHandler.
func NewLessonPlanHandler(resolver *timetable.Resolver) *LessonPlanHandler {
	return &LessonPlanHandler{resolver: resolver}
}

// Handle executes the query.
func (h *LessonPlanHandler) Handle(_ context.Context, q LessonPlanQuery) (*LessonPlanResult, error) {
	weekday := timeutil.SchoolWeekday(q.At, h.resolver.Location())
	if weekday >= timetable.SchoolDays {
		weekday = 0
	}
	if strings.TrimSpace(q.Day) != "" {
		day, ok := timetable.ParseWeekday(q.Day)
		if !ok {
			return nil, shared.NewDomainError("timetable", "LessonPlan", shared.ErrValidation,
				"Należy napisać po komendzie `/plan` numer dnia (1-5) bądź dzień tygodnia, lub zostawić parametry komendy puste.")
		}
		weekday = day
	}

	tt := h.resolver.Timetable()
	res := &LessonPlanResult{Weekday: weekday}
	var lines []string
	for period := 0; period < tt.PeriodCount(); period++ {
		entries := tt.Entries(weekday, period)
		if len(entries) == 0 {
			continue
		}
		res.Lessons = append(res.Lessons, timetable.Lookup{Period: period, Lessons: entries})

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := timetable.LessonName(e.LessonCode)
			if !e.Group.IsEveryone() {
				name += " " + e.Group.Suffix()
			}
			names = append(names, name)
		}
		b, _ := tt.Boundary(period)
		lines = append(lines, fmt.Sprintf("%d. __%s__: %s", period, b, strings.Join(names, " / ")))
	}

	header := fmt.Sprintf("📅 Plan lekcji %s (%s):", timetable.OnWeekday(weekday), lessonCount(len(lines)))
	res.Reply = strings.Join(append([]string{header}, lines...), "\n")
	return res, nil
}

func lessonCount(n int) string {
	switch last, tens := n%10, n%100; {
	case n == 1:
		return "1 lekcja"
	case last >= 2 && last <= 4 && (tens < 12 || tens > 14):
		return fmt.Sprintf("%d lekcje", n)
	default:
		return fmt.Sprintf("%d lekcji", n)
	}
}
