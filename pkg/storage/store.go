package storage

import (
	"errors"
	"time"

	"github.com/cuemby/flightwatch/pkg/types"
)

// ErrNotFound is returned when a flight or worker does not exist
var ErrNotFound = errors.New("storage: not found")

// Store defines the interface for the flight ownership ledger
type Store interface {
	// Workers
	RegisterWorker(id types.WorkerID, seen time.Time) error
	DeregisterWorker(id types.WorkerID) error
	ListWorkers() ([]types.WorkerID, error)

	// Flights
	CreateFlight(flight *types.Flight) error
	GetFlight(id string) (*types.Flight, error)
	ListFlights() ([]*types.Flight, error)
	ListFlightsByOwner(owner types.WorkerID) ([]*types.Flight, error)
	UpdateFlight(flight *types.Flight) error
	DeleteFlight(id string) error

	// ReassignFlights moves every unfinished flight owned by from to to,
	// marking it ready, in a single transaction. It returns the moved flights.
	ReassignFlights(from, to types.WorkerID, at time.Time) ([]*types.Flight, error)

	// Utility
	Close() error
}
