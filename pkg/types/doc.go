/*
Package types defines the core data structures shared by flightwatch packages.

# Core Types

Membership:
  - WorkerID: pod name identifying one worker process
  - WorkerState: running or deleted, as derived from the pod watch
  - WorkerSet: set of identities used by startup reconciliation

Coordinator:
  - Status: INITIALIZING, OK, ERROR, SHUTDOWN

A worker that has never been observed has no WorkerState at all. There is no
"unknown" value; absence from the membership table carries that meaning.

	INITIALIZING ──► OK ──► SHUTDOWN
	     │
	     └────────► ERROR

ERROR and SHUTDOWN are terminal for a coordinator instance.

Flights:
  - Flight: ownership record of a durable workflow execution
  - FlightStatus: queued, running, ready, success, error

Flights are owned by exactly one worker at a time. Recovery moves every
unfinished flight of a dead worker to a survivor and marks it ready.
*/
package types
