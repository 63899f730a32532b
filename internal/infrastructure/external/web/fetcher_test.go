package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

type recorded struct {
	feed, outcome string
}

type fakeRecorder struct {
	mu  sync.Mutex
	got []recorded
}

func (r *fakeRecorder) ObserveFetch(feed, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, recorded{feed, outcome})
}

func newTestFetcher(cfg Config) (*Fetcher, *timeutil.FakeClock, *fakeRecorder) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC))
	rec := &fakeRecorder{}
	return NewFetcher(cfg, nil, clock, nil, rec), clock, rec
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcher_CooldownBlocksSecondCallWithoutRequest(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, "ok")
	f, clock, rec := newTestFetcher(DefaultConfig())
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL, ForFeed("market"))
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = f.Fetch(ctx, srv.URL, ForFeed("market"))

	var rl *shared.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Second, rl.Wait)
	assert.True(t, errors.Is(err, shared.ErrRateLimited))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []recorded{{"market", OutcomeOK}, {"market", OutcomeRateLimited}}, rec.got)

	clock.Advance(2 * time.Second)
	_, err = f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_BypassIgnoresAndKeepsCooldown(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, "ok")
	f, clock, _ := newTestFetcher(DefaultConfig())
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	first := f.LastCall()

	clock.Advance(time.Second)
	_, err = f.Fetch(ctx, srv.URL, BypassCooldown())
	require.NoError(t, err)
	assert.Equal(t, first, f.LastCall())
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_AcceptedStatuses(t *testing.T) {
	ctx := context.Background()

	srv, _ := countingServer(t, http.StatusInternalServerError, `{"date":"30/12/2024"}`)
	f, _, _ := newTestFetcher(DefaultConfig())
	resp, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	missing, _ := countingServer(t, http.StatusNotFound, "")
	f, _, rec := newTestFetcher(DefaultConfig())
	_, err = f.Fetch(ctx, missing.URL, ForFeed("substitutions"))

	var up *shared.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusNotFound, up.StatusCode)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, []recorded{{"substitutions", OutcomeUpstream}}, rec.got)
}

func TestFetcher_TimeoutIs408(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	f, _, _ := newTestFetcher(cfg)

	_, err := f.Fetch(context.Background(), srv.URL)
	var up *shared.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, StatusTimeout, up.StatusCode)
	assert.ErrorIs(t, err, shared.ErrTimeout)
}

func TestFetcher_UnreachableIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f, _, _ := newTestFetcher(DefaultConfig())
	_, err := f.Fetch(context.Background(), url)
	var up *shared.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, StatusUnreachable, up.StatusCode)
}

func TestFetcher_CancelledContextMakesNoRequest(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, "ok")
	f, _, _ := newTestFetcher(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
	assert.True(t, f.LastCall().IsZero())
}

func TestFetcher_FetchJSONAndText(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{"lowest_price":"12,34zł"}`)
	f, _, _ := newTestFetcher(DefaultConfig())

	var out struct {
		LowestPrice string `json:"lowest_price"`
	}
	require.NoError(t, f.FetchJSON(context.Background(), srv.URL, &out, BypassCooldown()))
	assert.Equal(t, "12,34zł", out.LowestPrice)

	text, err := f.FetchText(context.Background(), srv.URL, BypassCooldown())
	require.NoError(t, err)
	assert.Contains(t, text, "zł")

	bad, _ := countingServer(t, http.StatusOK, "<html>")
	err = f.FetchJSON(context.Background(), bad.URL, &out, BypassCooldown())
	assert.True(t, shared.IsValidation(err))
}
