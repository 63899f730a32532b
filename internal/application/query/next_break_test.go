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

const timetableJSON = `{
  "periods": [["08:00","08:45"], ["08:55","09:40"], ["09:50","10:35"], ["10:45","11:30"]],
  "weekdays": [
    [[], [{"name":"mat.","group":"grupa_0"}],
         [{"name":"j.ang.","group":"grupa_1"},{"name":"j.niem.","group":"grupa_2"}],
         [{"name":"WF","group":"grupa_1"}]],
    [[{"name":"fiz","group":"grupa_0"}]],
    [[{"name":"bio","group":"grupa_0"}]],
    [[{"name":"bio","group":"grupa_0"}]],
    [[{"name":"bio","group":"grupa_0"}]]
  ]
}`

func monday(hour, minute int) time.Time {
	return time.Date(2024, 12, 30, hour, minute, 0, 0, timeutil.WarsawTZ)
}

func newResolver(t *testing.T) *timetable.Resolver {
	t.Helper()
	tt, err := timetable.Parse([]byte(timetableJSON))
	require.NoError(t, err)
	return timetable.NewResolver(tt, timeutil.WarsawTZ)
}

func TestNextBreak(t *testing.T) {
	h := NewNextBreakHandler(newResolver(t))
	group1 := []timetable.GroupTag{timetable.Group1}

	tests := []struct {
		name        string
		at          time.Time
		memberships []timetable.GroupTag
		want        string
	}{
		{"during a lesson", monday(9, 0), group1, "ℹ️ Następna przerwa jest za 40 minut o __09:40—09:50__ (10 min)."},
		{"rounds seconds up", monday(9, 0).Add(30 * time.Second), group1, "ℹ️ Następna przerwa jest za 40 minut o __09:40—09:50__ (10 min)."},
		{"before school skips the empty first period", monday(7, 0), group1, "ℹ️ Następna przerwa jest za 2 godziny 40 minut o __09:40—09:50__ (10 min)."},
		{"last break", monday(11, 0), group1, "ℹ️ Następna przerwa jest za 30 minut o __11:30__ i jest to ostatnia przerwa."},
		{"no more lessons for the group", monday(11, 0), []timetable.GroupTag{timetable.Group2}, NoLessonsLeftReply},
		{"after school", monday(13, 0), group1, AfterLessonsReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), NextBreakQuery{At: tt.at, Memberships: tt.memberships})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reply)
		})
	}
}

func TestConjugate(t *testing.T) {
	assert.Equal(t, "1 minutę", Conjugate(1, "minut"))
	assert.Equal(t, "2 minuty", Conjugate(2, "minut"))
	assert.Equal(t, "5 minut", Conjugate(5, "minut"))
	assert.Equal(t, "12 minut", Conjugate(12, "minut"))
	assert.Equal(t, "22 minuty", Conjugate(22, "minut"))
	assert.Equal(t, "1 godzinę", Duration(60))
	assert.Equal(t, "1 godzinę 1 minutę", Duration(61))
}
