package middleware

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained command rate per user.
	RequestsPerMinute int

	// BurstSize is how many commands a user can send at once.
	BurstSize int

	// Exempt users are never limited.
	Exempt map[string]bool
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
	}
}

// RateLimiter is a per-user token bucket.
type RateLimiter struct {
	config RateLimitConfig
	clock  timeutil.Clock

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig, clock timeutil.Clock) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 20
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RateLimiter{config: config, clock: clock, buckets: make(map[string]*tokenBucket)}
}

// Allow takes a token from the user's bucket. When the bucket is empty it
// returns false and how long until the next token.
func (rl *RateLimiter) Allow(userID string) (bool, time.Duration) {
	if rl.config.Exempt[userID] {
		return true, 0
	}

	now := rl.clock.Now()
	rate := float64(rl.config.RequestsPerMinute) / 60 // tokens per second
	burst := float64(rl.config.BurstSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[userID]
	if !ok {
		b = &tokenBucket{tokens: burst, lastRefill: now}
		rl.buckets[userID] = b
	}

	b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastRefill).Seconds()*rate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	return false, wait
}

// Prune forgets users whose buckets have refilled completely.
func (rl *RateLimiter) Prune() {
	now := rl.clock.Now()
	full := time.Duration(float64(rl.config.BurstSize) / float64(rl.config.RequestsPerMinute) * float64(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, b := range rl.buckets {
		if now.Sub(b.lastRefill) >= full {
			delete(rl.buckets, id)
		}
	}
}

// LimitedReply is the answer to a user who sends commands too fast.
func LimitedReply(wait time.Duration) string {
	return fmt.Sprintf("⏳ Za dużo komend naraz. Spróbuj ponownie za %d s.", int(math.Ceil(wait.Seconds())))
}
