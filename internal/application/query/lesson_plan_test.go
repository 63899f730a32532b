package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

func TestLessonPlan(t *testing.T) {
	h := NewLessonPlanHandler(newResolver(t))

	mondayPlan := "📅 Plan lekcji w poniedziałek (3 lekcje):\n" +
		"1. __08:55-09:40__: matematyka\n" +
		"2. __09:50-10:35__: język angielski dla grupy pierwszej / język niem. dla grupy drugiej\n" +
		"3. __10:45-11:30__: wychowanie fizyczne dla grupy pierwszej"

	tests := []struct {
		name    string
		at      time.Time
		day     string
		weekday int
		want    string
	}{
		{"today", monday(9, 0), "", 0, mondayPlan},
		{"weekend shows monday", time.Date(2025, 1, 4, 10, 0, 0, 0, timeutil.WarsawTZ), "", 0, mondayPlan},
		{"day number", monday(9, 0), "2", 1, "📅 Plan lekcji we wtorek (1 lekcja):\n0. __08:00-08:45__: fiz"},
		{"day name prefix", monday(9, 0), "śr", 2, "📅 Plan lekcji w środę (1 lekcja):\n0. __08:00-08:45__: bio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), LessonPlanQuery{At: tt.at, Day: tt.day})
			require.NoError(t, err)
			assert.Equal(t, tt.weekday, res.Weekday)
			assert.Equal(t, tt.want, res.Reply)
		})
	}
}

func TestLessonPlan_InvalidDay(t *testing.T) {
	h := NewLessonPlanHandler(newResolver(t))

	for _, day := range []string{"0", "7", "sobota", "jutro"} {
		_, err := h.Handle(context.Background(), LessonPlanQuery{At: monday(9, 0), Day: day})
		require.Error(t, err, day)
		assert.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestLessonCount(t *testing.T) {
	assert.Equal(t, "1 lekcja", lessonCount(1))
	assert.Equal(t, "3 lekcje", lessonCount(3))
	assert.Equal(t, "5 lekcji", lessonCount(5))
	assert.Equal(t, "12 lekcji", lessonCount(12))
	assert.Equal(t, "22 lekcje", lessonCount(22))
}
