package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveFetch("market", "ok", 20*time.Millisecond)
	m.ObserveFetch("market", "rate_limited", 0)
	m.RecordReminder("sent")
	m.RecordPriceAlert()
	m.ObserveJob("poll-feeds", errors.New("boom"), time.Second)
	m.RecordStateSave(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues("market", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues("market", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.priceAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobTotal.WithLabelValues("poll-feeds", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateSaves.WithLabelValues("ok")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordPriceAlert()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "market_price_alerts_total 1")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("x", "ok", time.Second)
	m.RecordReminder("sent")
	m.ObserveCommand("zadanie", nil, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
