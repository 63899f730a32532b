package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

func TestRecover(t *testing.T) {
	v, err := Recover(func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = Recover(func() (int, error) { panic("nil map") })
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "nil map", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestRateLimiter(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6, BurstSize: 2, Exempt: map[string]bool{"op": true}}, clock)

	ok, _ := rl.Allow("u")
	assert.True(t, ok)
	ok, _ = rl.Allow("u")
	assert.True(t, ok)
	ok, wait := rl.Allow("u")
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, wait)

	ok, _ = rl.Allow("other")
	assert.True(t, ok, "buckets are per user")

	clock.Advance(10 * time.Second)
	ok, _ = rl.Allow("u")
	assert.True(t, ok)

	for i := 0; i < 10; i++ {
		ok, _ = rl.Allow("op")
		assert.True(t, ok)
	}

	clock.Advance(time.Minute)
	rl.Prune()
	assert.Empty(t, rl.buckets)

	assert.Equal(t, "⏳ Za dużo komend naraz. Spróbuj ponownie za 10 s.", LimitedReply(9500*time.Millisecond))
}
