package types

import (
	"sort"
	"time"
)

// WorkerID identifies a single worker process. Inside a cluster it is the pod
// name, which is stable for the lifetime of the pod.
type WorkerID string

// String returns the worker identity as a plain string
func (id WorkerID) String() string {
	return string(id)
}

// WorkerState is the lifecycle state of a worker as observed through the pod watch
type WorkerState string

const (
	WorkerStateRunning WorkerState = "running"
	WorkerStateDeleted WorkerState = "deleted"
)

// Status is the coordinator status exposed to health checks
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusOK           Status = "OK"
	StatusError        Status = "ERROR"
	StatusShutdown     Status = "SHUTDOWN"
)

// Terminal reports whether no further transitions are allowed from s
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusShutdown
}

// WorkerSet is an unordered set of worker identities
type WorkerSet map[WorkerID]struct{}

// NewWorkerSet builds a set from the given identities
func NewWorkerSet(ids ...WorkerID) WorkerSet {
	s := make(WorkerSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set
func (s WorkerSet) Add(id WorkerID) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set
func (s WorkerSet) Has(id WorkerID) bool {
	_, ok := s[id]
	return ok
}

// Difference returns the members of s that are not in other
func (s WorkerSet) Difference(other WorkerSet) WorkerSet {
	out := make(WorkerSet, len(s))
	for id := range s {
		if !other.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Sorted returns the members in lexical order
func (s WorkerSet) Sorted() []WorkerID {
	ids := make([]WorkerID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Flight is the ownership record of one durable workflow execution.
// Only the fields needed to hand a flight over to a surviving worker are kept.
type Flight struct {
	ID        string
	Owner     WorkerID
	Status    FlightStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FlightStatus is the coarse execution state of a flight
type FlightStatus string

const (
	FlightStatusQueued  FlightStatus = "queued"
	FlightStatusRunning FlightStatus = "running"
	FlightStatusReady   FlightStatus = "ready"   // Recovered, waiting to be resumed
	FlightStatusSuccess FlightStatus = "success"
	FlightStatusError   FlightStatus = "error"
)

// Unfinished reports whether a flight still needs an owner to drive it
func (s FlightStatus) Unfinished() bool {
	switch s {
	case FlightStatusQueued, FlightStatusRunning, FlightStatusReady:
		return true
	default:
		return false
	}
}
