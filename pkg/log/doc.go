/*
Package log provides structured logging for flightwatch using zerolog.

A single package-level zerolog.Logger is configured once at process start with
Init and shared by every package. New builds a standalone logger from the same
Config for code that must not touch the shared one. Components derive child loggers that carry a
"component" field so that watcher, membership and recovery output can be
filtered independently.

# Usage

	log.Init(log.Config{
		Level:      log.ParseLevel("info"),
		JSONOutput: true,
	})

	watchLog := log.WithComponent("watcher")
	watchLog.Warn().
		Int("attempt", 3).
		Dur("backoff", 20*time.Second).
		Msg("pod watch ended, reconnecting")

# Fields

Common structured fields used across the codebase:
  - component: watcher, membership, recovery, engine, api
  - worker_id: pod name of the worker a message is about
  - attempt: consecutive watch failure count
  - backoff: sleep before the next watch attempt
  - event_type: ADDED, DELETED, MODIFIED, BOOKMARK, ERROR

Before Init is called the logger writes JSON to stderr at info level. Output
always defaults to stderr; stdout is reserved for command results.
*/
package log
