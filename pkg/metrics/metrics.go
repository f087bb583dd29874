package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recovery sources
const (
	SourceStartup = "startup"
	SourceWatch   = "watch"
)

// Metrics holds the flightwatch collectors. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
type Metrics struct {
	ActiveWorkers     prometheus.Gauge
	WatchEvents       *prometheus.CounterVec
	WatchReconnects   prometheus.Counter
	WatchFailures     prometheus.Gauge
	WatchExhausted    prometheus.Gauge
	Recoveries        *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	ObsoleteWorkers   prometheus.Gauge
	CoordinatorStatus *prometheus.GaugeVec
	registry          *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)
	m.registry = reg
	return m
}

// NewWithRegisterer creates the collectors and registers them on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightwatch_active_workers",
			Help: "Number of workers currently observed as running",
		}),
		WatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightwatch_watch_events_total",
			Help: "Pod watch events received by type",
		}, []string{"type"}),
		WatchReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightwatch_watch_reconnects_total",
			Help: "Number of times the pod watch was reopened after a failure",
		}),
		WatchFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightwatch_watch_consecutive_failures",
			Help: "Current number of consecutive pod watch failures",
		}),
		WatchExhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightwatch_watch_exhausted",
			Help: "Whether the pod watch gave up after exhausting its retries (1 = stopped)",
		}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightwatch_recoveries_total",
			Help: "Worker recovery attempts by source and result",
		}, []string{"source", "result"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightwatch_reconcile_duration_seconds",
			Help:    "Time taken by startup reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ObsoleteWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightwatch_obsolete_workers",
			Help: "Workers selected for recovery by the last reconciliation",
		}),
		CoordinatorStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flightwatch_coordinator_status",
			Help: "Coordinator status (1 for the current status, 0 otherwise)",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ActiveWorkers,
		m.WatchEvents,
		m.WatchReconnects,
		m.WatchFailures,
		m.WatchExhausted,
		m.Recoveries,
		m.ReconcileDuration,
		m.ObsoleteWorkers,
		m.CoordinatorStatus,
	)
	return m
}

// Handler returns the Prometheus HTTP handler for these metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveWatchEvent counts one pod watch event
func (m *Metrics) ObserveWatchEvent(eventType string) {
	if m == nil {
		return
	}
	m.WatchEvents.WithLabelValues(eventType).Inc()
}

// SetWatchFailures records the consecutive failure count
func (m *Metrics) SetWatchFailures(n int) {
	if m == nil {
		return
	}
	m.WatchFailures.Set(float64(n))
}

// IncWatchReconnects counts a reconnect attempt
func (m *Metrics) IncWatchReconnects() {
	if m == nil {
		return
	}
	m.WatchReconnects.Inc()
}

// SetWatchExhausted flags that the watch stopped retrying
func (m *Metrics) SetWatchExhausted(exhausted bool) {
	if m == nil {
		return
	}
	if exhausted {
		m.WatchExhausted.Set(1)
	} else {
		m.WatchExhausted.Set(0)
	}
}

// SetActiveWorkers records the number of running workers
func (m *Metrics) SetActiveWorkers(n int) {
	if m == nil {
		return
	}
	m.ActiveWorkers.Set(float64(n))
}

// ObserveRecovery counts a recovery attempt from the given source
func (m *Metrics) ObserveRecovery(source string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Recoveries.WithLabelValues(source, result).Inc()
}

// SetObsoleteWorkers records the size of the last reconciliation result
func (m *Metrics) SetObsoleteWorkers(n int) {
	if m == nil {
		return
	}
	m.ObsoleteWorkers.Set(float64(n))
}

// SetCoordinatorStatus marks status as current among all known statuses
func (m *Metrics) SetCoordinatorStatus(status string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.CoordinatorStatus.WithLabelValues(s).Set(0)
	}
	m.CoordinatorStatus.WithLabelValues(status).Set(1)
}

// ReconcileTimer returns the histogram for reconciliation timing, or nil
func (m *Metrics) ReconcileTimer() prometheus.Observer {
	if m == nil {
		return nil
	}
	return m.ReconcileDuration
}
