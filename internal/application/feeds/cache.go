// Package feeds synchronizes the external feeds: market prices, lucky
// numbers and lesson substitutions.
package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// Entry is a cached payload and when it was fetched.
type Entry[T any] struct {
	Payload   T
	FetchedAt time.Time
}

// StaleError accompanies a stale payload returned because a refresh failed.
type StaleError struct {
	FetchedAt time.Time
	Err       error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("serving data fetched at %s: %v", e.FetchedAt.Format(time.RFC3339), e.Err)
}

func (e *StaleError) Unwrap() error {
	return e.Err
}

// Cache holds the last successfully fetched payload of one feed.
//
// With a positive TTL an entry older than the TTL is refreshed on Get. With
// a zero TTL only the entry's existence matters: Get refreshes only when
// nothing was ever fetched.
//
// Get never leaves a caller empty-handed when something was fetched before:
// a failed refresh returns the stale payload together with a *StaleError.
type Cache[T any] struct {
	ttl     time.Duration
	clock   timeutil.Clock
	refresh func(ctx context.Context) (T, error)

	refreshMu sync.Mutex
	mu        sync.RWMutex
	entry     *Entry[T]
}

// NewCache creates a cache filled by refresh.
func NewCache[T any](ttl time.Duration, clock timeutil.Clock, refresh func(ctx context.Context) (T, error)) *Cache[T] {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Cache[T]{ttl: ttl, clock: clock, refresh: refresh}
}

// Get returns the cached payload, refreshing it first when it is missing or
// expired.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	if e, ok := c.Peek(); ok && !c.expired(e) {
		return e.Payload, nil
	}
	e, _, err := c.Refresh(ctx)
	return e.Payload, err
}

// Refresh fetches unconditionally. It returns the new entry and the one it
// replaced, if any. On failure the old entry stays and is returned as the
// first value with a *StaleError; with no old entry the fetch error is
// returned as is.
func (c *Cache[T]) Refresh(ctx context.Context) (current Entry[T], previous *Entry[T], err error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	previous = c.entry
	c.mu.RUnlock()

	payload, err := c.refresh(ctx)
	if err != nil {
		if previous != nil {
			return *previous, previous, &StaleError{FetchedAt: previous.FetchedAt, Err: err}
		}
		return Entry[T]{}, nil, err
	}

	fresh := &Entry[T]{Payload: payload, FetchedAt: c.clock.Now()}
	c.mu.Lock()
	c.entry = fresh
	c.mu.Unlock()
	return *fresh, previous, nil
}

// Peek returns the cached entry without fetching.
func (c *Cache[T]) Peek() (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry[T]{}, false
	}
	return *c.entry, true
}

// Seed installs a payload without fetching, e.g. one restored from storage.
func (c *Cache[T]) Seed(payload T, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &Entry[T]{Payload: payload, FetchedAt: fetchedAt}
}

func (c *Cache[T]) expired(e Entry[T]) bool {
	return c.ttl > 0 && c.clock.Now().Sub(e.FetchedAt) > c.ttl
}
