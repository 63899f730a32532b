// Package web implements the shared outbound HTTP fetcher used by every feed.
// All feeds go through one Fetcher so the cooldown protects the upstream
// services as a whole.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// StatusTimeout is reported when the upstream does not answer in time.
const StatusTimeout = http.StatusRequestTimeout

// StatusUnreachable is reported when no HTTP response was received at all.
const StatusUnreachable = 0

const maxBodySize = 4 << 20

// Config contains configuration for the Fetcher.
type Config struct {
	// Cooldown is the minimum time between two non-bypassed calls.
	Cooldown time.Duration

	// Timeout bounds a single request.
	Timeout time.Duration

	// AcceptedStatuses lists the status codes whose bodies are valid content.
	AcceptedStatuses []int

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the production settings. Besides 200, the feeds
// answer 500 with a usable body while their backends rebuild.
func DefaultConfig() Config {
	return Config{
		Cooldown:         3 * time.Second,
		Timeout:          10 * time.Second,
		AcceptedStatuses: []int{http.StatusOK, http.StatusInternalServerError},
		UserAgent:        "class-bell/1.0",
	}
}

// Recorder receives one observation per fetch attempt.
type Recorder interface {
	ObserveFetch(feed, outcome string, took time.Duration)
}

// Fetch outcomes reported to the Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeUpstream    = "upstream_error"
)

// ══════════════════════════════════════════════════════════════════════════════
// FETCHER
// ══════════════════════════════════════════════════════════════════════════════

// Response is a fetched document.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FetchedAt  time.Time
}

// Text returns the body decoded as UTF-8. Invalid sequences become U+FFFD.
func (r *Response) Text() string {
	return strings.ToValidUTF8(string(r.Body), "�")
}

// Option adjusts a single fetch.
type Option func(*fetchOptions)

type fetchOptions struct {
	bypass bool
	feed   string
}

// BypassCooldown skips the cooldown check. The call does not move the shared
// last-call timestamp either.
func BypassCooldown() Option {
	return func(o *fetchOptions) { o.bypass = true }
}

// ForFeed labels the call in logs and metrics.
func ForFeed(name string) Option {
	return func(o *fetchOptions) { o.feed = name }
}

// Fetcher performs rate-limited GET requests.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	clock    timeutil.Clock
	logger   *zap.Logger
	recorder Recorder

	mu       sync.Mutex
	lastCall time.Time
}

// NewFetcher creates a Fetcher. client may be nil.
func NewFetcher(cfg Config, client *http.Client, clock timeutil.Clock, logger *zap.Logger, recorder Recorder) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.AcceptedStatuses) == 0 {
		cfg.AcceptedStatuses = DefaultConfig().AcceptedStatuses
	}
	return &Fetcher{
		cfg:      cfg,
		client:   client,
		clock:    clock,
		logger:   logger,
		recorder: recorder,
	}
}

// Fetch downloads url.
//
// Without BypassCooldown it fails with *shared.RateLimitedError, and makes
// no request, when less than the cooldown passed since the previous
// non-bypassed call. Timeouts, transport failures and statuses outside the
// accepted set fail with *shared.UpstreamError.
//
// A request that has started is not cancelled when ctx is; it is bounded by
// the configured timeout instead.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts ...Option) (*Response, error) {
	o := fetchOptions{feed: "default"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !o.bypass {
		if wait, ok := f.reserve(); !ok {
			f.observe(o.feed, OutcomeRateLimited, 0)
			f.logger.Debug("fetch rate limited",
				zap.String("feed", o.feed),
				zap.Duration("wait", wait),
			)
			return nil, &shared.RateLimitedError{Wait: wait}
		}
	}

	start := f.clock.Now()
	resp, err := f.do(ctx, url)
	took := f.clock.Now().Sub(start)
	if err != nil {
		f.observe(o.feed, OutcomeUpstream, took)
		f.logger.Warn("fetch failed",
			zap.String("feed", o.feed),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	f.observe(o.feed, OutcomeOK, took)
	f.logger.Debug("fetched",
		zap.String("feed", o.feed),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("took", took),
	)
	return resp, nil
}

// FetchJSON fetches url and decodes the body into dst.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, dst any, opts ...Option) error {
	resp, err := f.Fetch(ctx, url, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return shared.WrapError("web", "FetchJSON", shared.ErrInvalidFormat,
			fmt.Sprintf("decode %s", url), err)
	}
	return nil
}

// FetchText fetches url and returns the body as UTF-8 text.
func (f *Fetcher) FetchText(ctx context.Context, url string, opts ...Option) (string, error) {
	resp, err := f.Fetch(ctx, url, opts...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// LastCall returns the time of the last non-bypassed call.
func (f *Fetcher) LastCall() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCall
}

// reserve claims the cooldown slot. It returns the remaining wait when the
// slot is taken.
func (f *Fetcher) reserve() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	if !f.lastCall.IsZero() {
		if since := now.Sub(f.lastCall); since < f.cfg.Cooldown {
			return f.cfg.Cooldown - since, false
		}
	}
	f.lastCall = now
	return 0, true
}

func (f *Fetcher) do(ctx context.Context, url string) (*Response, error) {
	reqCtx := context.WithoutCancel(ctx)
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, f.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &shared.UpstreamError{StatusCode: StatusUnreachable, URL: url, Err: err}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &shared.UpstreamError{StatusCode: classify(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &shared.UpstreamError{StatusCode: classify(err), URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if !slices.Contains(f.cfg.AcceptedStatuses, resp.StatusCode) {
		return nil, &shared.UpstreamError{StatusCode: resp.StatusCode, URL: url}
	}

	return &Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FetchedAt:  f.clock.Now(),
	}, nil
}

func (f *Fetcher) observe(feed, outcome string, took time.Duration) {
	if f.recorder != nil {
		f.recorder.ObserveFetch(feed, outcome, took)
	}
}

// classify maps a transport error to the reported status code.
func classify(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusUnreachable
}
