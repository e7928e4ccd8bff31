package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nova-ops/account-sweeper/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for sweep runs.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	runsTotal       prometheus.Counter
	runFailures     prometheus.Counter
	skippedTriggers prometheus.Counter
	accountsChecked *prometheus.CounterVec
	refreshedTotal  prometheus.Counter
	runDuration     prometheus.Histogram
	runInFlight     prometheus.Gauge
}

// NewMetricsService registers the sweep collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of completed sweep runs",
	})

	runFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_run_failures_total",
		Help: "Total number of sweep runs aborted by a run-level error",
	})

	skippedTriggers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_skipped_triggers_total",
		Help: "Triggers dropped because a sweep was already running",
	})

	accountsChecked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_accounts_checked_total",
		Help: "Accounts checked per terminal status",
	}, []string{"status"})

	refreshedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_tokens_refreshed_total",
		Help: "Accounts whose credentials were rotated during a sweep",
	})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_run_duration_seconds",
		Help:    "Duration of sweep runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	runInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_run_in_flight",
		Help: "1 while a sweep run is in progress",
	})

	registry.MustRegister(runsTotal, runFailures, skippedTriggers, accountsChecked, refreshedTotal, runDuration, runInFlight)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runsTotal:       runsTotal,
		runFailures:     runFailures,
		skippedTriggers: skippedTriggers,
		accountsChecked: accountsChecked,
		refreshedTotal:  refreshedTotal,
		runDuration:     runDuration,
		runInFlight:     runInFlight,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RunStarted marks a run as in flight.
func (m *MetricsService) RunStarted() {
	if m == nil {
		return
	}
	m.runInFlight.Set(1)
}

// RunCompleted records a finished run and its duration.
func (m *MetricsService) RunCompleted(duration time.Duration) {
	if m == nil {
		return
	}
	m.runInFlight.Set(0)
	m.runsTotal.Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RunFailed records a run aborted by a run-level error.
func (m *MetricsService) RunFailed() {
	if m == nil {
		return
	}
	m.runInFlight.Set(0)
	m.runFailures.Inc()
}

// TriggerSkipped records a trigger dropped by the reentrancy guard.
func (m *MetricsService) TriggerSkipped() {
	if m == nil {
		return
	}
	m.skippedTriggers.Inc()
}

// AccountChecked records one classified account.
func (m *MetricsService) AccountChecked(status models.CheckStatus, refreshed bool) {
	if m == nil {
		return
	}
	m.accountsChecked.WithLabelValues(string(status)).Inc()
	if refreshed {
		m.refreshedTotal.Inc()
	}
}
