/*
Package membership tracks which workers of a clustered flightwatch deployment
are alive, using a long-lived watch on the cluster's pods.

# Architecture

	             ┌──────────────────────────────┐
	             │           Service            │
	             │  ShutdownSignal  Table       │
	             └──────┬───────────────▲───────┘
	                    │ Start         │ RecordRunning / RecordDeletedIfRunning
	                    ▼               │
	┌────────────┐   ┌──────────────────┴───┐   DeletedFunc   ┌─────────────┐
	│ ClusterAPI │──►│ Watcher (goroutine)  │────────────────►│ recovery    │
	│ WatchPods  │   │ one retry loop       │                 │ coordinator │
	└────────────┘   └──────────────────────┘                 └─────────────┘

The Watcher opens a watch, applies ADDED and DELETED events for pods whose name
contains the configured filter, and reconnects with exponential backoff when
the stream ends or cannot be opened. A delivered event resets the failure
streak. After MaxRetries consecutive failures the watcher returns
ErrRetriesExhausted and membership tracking stops for the rest of the process;
it is not restarted automatically.

# Resync

Watches are opened without a resource version, so each new watch first replays
every existing pod as ADDED. A reconnect therefore cannot lose pods that lived
through the gap. A pod created and deleted entirely inside the gap is missed,
which is harmless: it never owned work.

# Deletions

A DELETED event only triggers recovery when the worker was running, so a
duplicate delete is a no-op. The callback runs synchronously on the watcher
goroutine, which means two deletions are never recovered concurrently by the
watch path. Panics from the callback are logged and the watch keeps going.

# Outside a cluster

With Config.InCluster false the watcher is never started, SnapshotLiveWorkers
returns an empty set and ActiveCount reports DefaultActiveCount.
*/
package membership
