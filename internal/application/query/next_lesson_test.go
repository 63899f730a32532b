package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

func TestNextLesson(t *testing.T) {
	h := NewNextLessonHandler(newResolver(t))
	group1 := []timetable.GroupTag{timetable.Group1}
	group2 := []timetable.GroupTag{timetable.Group2}

	friday := time.Date(2025, 1, 3, 13, 0, 0, 0, timeutil.WarsawTZ)
	saturday := time.Date(2025, 1, 4, 10, 0, 0, 0, timeutil.WarsawTZ)
	sunday := time.Date(2025, 1, 5, 10, 0, 0, 0, timeutil.WarsawTZ)

	tests := []struct {
		name        string
		at          time.Time
		memberships []timetable.GroupTag
		want        string
		today       bool
	}{
		{"skips the lesson in progress", monday(9, 0), group1, "ℹ️ Następna lekcja to **język angielski dla grupy pierwszej** o godzinie __09:50__.", true},
		{"before school skips the empty first period", monday(7, 0), group1, "ℹ️ Następna lekcja to **matematyka** o godzinie __08:55__.", true},
		{"during a break", monday(9, 45), group2, "ℹ️ Następna lekcja to **język niem. dla grupy drugiej** o godzinie __09:50__.", true},
		{"no more lessons today", monday(11, 0), group2, "ℹ️ Następna lekcja to **fiz** jutro o godzinie __08:00__.", false},
		{"friday afternoon", friday, group1, "ℹ️ Następna lekcja to **matematyka** w poniedziałek o godzinie __08:55__.", false},
		{"saturday", saturday, group1, "ℹ️ Następna lekcja to **matematyka** w poniedziałek o godzinie __08:55__.", false},
		{"sunday", sunday, group1, "ℹ️ Następna lekcja to **matematyka** jutro o godzinie __08:55__.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), NextLessonQuery{At: tt.at, Memberships: tt.memberships})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reply)
			assert.Equal(t, tt.today, res.IsToday)
		})
	}
}

func TestNextLesson_NothingScheduled(t *testing.T) {
	tt, err := timetable.Parse([]byte(`{"periods": [["08:00","08:45"]], "weekdays": [[[]],[[]],[[]],[[]],[[]]]}`))
	require.NoError(t, err)
	h := NewNextLessonHandler(timetable.NewResolver(tt, timeutil.WarsawTZ))

	res, err := h.Handle(context.Background(), NextLessonQuery{At: monday(7, 0)})
	require.NoError(t, err)
	assert.Equal(t, NoLessonFoundReply, res.Reply)
	assert.False(t, res.Lesson.Found())
}
