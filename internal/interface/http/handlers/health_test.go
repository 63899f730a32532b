package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestChecker(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC))
	c := NewChecker("1.0", time.Second, clock)

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)

	c.AddCheck("state", PingCheck(pinger{}))
	c.AddCheck("telegram", PingCheck(pinger{err: errors.New("unauthorized")}))
	clock.Advance(90 * time.Second)

	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: telegram", status.Message)
	assert.Equal(t, "1m30s", status.Uptime)
	require.Contains(t, status.Checks, "state")
	assert.True(t, status.Checks["state"].Healthy)
	assert.Equal(t, "unauthorized", status.Checks["telegram"].Message)
}

func TestChecker_TimesOutSlowChecks(t *testing.T) {
	c := NewChecker("", 10*time.Millisecond, nil)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}
