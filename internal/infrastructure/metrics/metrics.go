// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	fetchTotal      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	jobDuration     *prometheus.HistogramVec
	jobTotal        *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
	priceAlerts     prometheus.Counter
	commandTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	stateSaves      *prometheus.CounterVec
}

// New registers every collector.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_fetch_total",
		Help: "Upstream fetch attempts by feed and outcome",
	}, []string{"feed", "outcome"})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_fetch_duration_seconds",
		Help:    "Duration of upstream requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_job_duration_seconds",
		Help:    "Duration of scheduled job runs",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60},
	}, []string{"job"})

	jobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Scheduled job runs by status",
	}, []string{"job", "status"})

	remindersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homework_reminders_total",
		Help: "Homework reminder lifecycle events",
	}, []string{"outcome"})

	priceAlerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_price_alerts_total",
		Help: "Price alerts sent for tracked items",
	})

	commandTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Chat commands handled by status",
	}, []string{"command", "status"})

	commandDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_command_duration_seconds",
		Help:    "Duration of chat command handling",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	stateSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "state_saves_total",
		Help: "State document saves by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(fetchTotal, fetchDuration, jobDuration, jobTotal, remindersTotal,
		priceAlerts, commandTotal, commandDuration, stateSaves, goroutines)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		fetchTotal:      fetchTotal,
		fetchDuration:   fetchDuration,
		jobDuration:     jobDuration,
		jobTotal:        jobTotal,
		remindersTotal:  remindersTotal,
		priceAlerts:     priceAlerts,
		commandTotal:    commandTotal,
		commandDuration: commandDuration,
		stateSaves:      stateSaves,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one upstream fetch attempt. Rate-limited attempts
// never reach the network and are only counted.
func (m *Metrics) ObserveFetch(feed, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(feed, outcome).Inc()
	if took > 0 {
		m.fetchDuration.WithLabelValues(feed).Observe(took.Seconds())
	}
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, err error, took time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobTotal.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

// RecordReminder counts a reminder event ("sent", "done", "snoozed", "timeout").
func (m *Metrics) RecordReminder(outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

// RecordPriceAlert counts a one-shot price alert.
func (m *Metrics) RecordPriceAlert() {
	if m == nil {
		return
	}
	m.priceAlerts.Inc()
}

// ObserveCommand records one chat command.
func (m *Metrics) ObserveCommand(command string, err error, took time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.commandTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(took.Seconds())
}

// RecordStateSave counts a state document save.
func (m *Metrics) RecordStateSave(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stateSaves.WithLabelValues(status).Inc()
}
