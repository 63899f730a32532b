package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/interface/http/handlers"
)

func newTestHandler(t *testing.T, stateErr error) http.Handler {
	t.Helper()
	checker := handlers.NewChecker("test", 0, nil)
	checker.AddCheck("state", func(context.Context) error { return stateErr })

	deps := Dependencies{
		Health: checker,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("classbell_up 1\n"))
		}),
	}
	return NewServer(DefaultConfig(), deps).Handler(deps)
}

func TestServer_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestServer_HealthFailsWithState(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	newTestHandler(t, errors.New("connection refused")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestServer_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "classbell_up 1\n", rec.Body.String())
}

func TestServer_RecoversPanics(t *testing.T) {
	deps := Dependencies{Health: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })}
	h := NewServer(DefaultConfig(), deps).Handler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_UnknownPath(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/homework", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
