package feeds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

type source struct {
	calls int
	value string
	err   error
}

func (s *source) fetch(context.Context) (string, error) {
	s.calls++
	return s.value, s.err
}

func TestCache_TTL(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC))
	src := &source{value: "a"}
	c := NewCache(24*time.Hour, clock, src.fetch)
	ctx := context.Background()

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	src.value = "b"
	clock.Advance(23 * time.Hour)
	got, _ = c.Get(ctx)
	assert.Equal(t, "a", got)
	assert.Equal(t, 1, src.calls)

	clock.Advance(2 * time.Hour)
	got, _ = c.Get(ctx)
	assert.Equal(t, "b", got)
	assert.Equal(t, 2, src.calls)
}

func TestCache_ExistenceGated(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC))
	src := &source{value: "a"}
	c := NewCache(0, clock, src.fetch)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	clock.Advance(365 * 24 * time.Hour)
	_, _ = c.Get(context.Background())
	assert.Equal(t, 1, src.calls)
}

func TestCache_StaleOnFailure(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC))
	boom := errors.New("upstream down")
	src := &source{err: boom}
	c := NewCache(time.Hour, clock, src.fetch)

	_, err := c.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	var stale *StaleError
	assert.False(t, errors.As(err, &stale))

	src.err, src.value = nil, "a"
	_, err = c.Get(context.Background())
	require.NoError(t, err)

	src.err = boom
	clock.Advance(2 * time.Hour)
	got, err := c.Get(context.Background())
	assert.Equal(t, "a", got)
	require.ErrorAs(t, err, &stale)
	assert.ErrorIs(t, err, boom)
}

func TestCache_RefreshReportsPrevious(t *testing.T) {
	src := &source{value: "a"}
	c := NewCache(0, nil, src.fetch)

	cur, prev, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Equal(t, "a", cur.Payload)

	src.value = "b"
	cur, prev, err = c.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.Payload)
	assert.Equal(t, "b", cur.Payload)
}
