/*
Package metrics provides Prometheus metrics for flightwatch.

Collectors live on an explicitly constructed Metrics value that is passed to the
watcher, the membership service and the recovery coordinator. Nothing is
registered on the global default registry, so several instances (tests, or
embedding in a larger process) never collide.

# Metrics

	flightwatch_active_workers                 gauge    workers observed running
	flightwatch_watch_events_total{type}       counter  pod watch events by type
	flightwatch_watch_reconnects_total         counter  watch reopen attempts
	flightwatch_watch_consecutive_failures     gauge    current failure streak
	flightwatch_watch_exhausted                gauge    1 once the watch gave up
	flightwatch_recoveries_total{source,result} counter recoveries (startup|watch)
	flightwatch_reconcile_duration_seconds     histogram startup reconciliation time
	flightwatch_obsolete_workers               gauge    size of last reconciliation
	flightwatch_coordinator_status{status}     gauge    1 for the current status

flightwatch_watch_exhausted deserves an alert: once set, membership tracking has
stopped for the rest of the process lifetime and dead workers are no longer
recovered until the process restarts.

# Usage

	m := metrics.New()
	mux.Handle("/metrics", m.Handler())

	timer := metrics.NewTimer()
	result, err := coordinator.Reconcile(ctx)
	timer.ObserveDuration(m.ReconcileTimer())

A nil *Metrics is accepted everywhere and records nothing.
*/
package metrics
