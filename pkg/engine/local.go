package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/storage"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/rs/zerolog"
)

// ErrAlreadyFinished is returned by Finish for a flight with a final status
var ErrAlreadyFinished = errors.New("flight already finished")

// Local is an engine over a single-writer ledger. The bolt file behind the
// storage.Store is locked by the one flightwatch process that opened it, and
// that process records flights for every worker id it is told about; Recover
// hands a dead worker's unfinished flights to this worker.
type Local struct {
	store  storage.Store
	self   types.WorkerID
	now    func() time.Time
	logger zerolog.Logger
}

// NewLocal creates an engine acting as self
func NewLocal(store storage.Store, self types.WorkerID) *Local {
	return &Local{
		store:  store,
		self:   self,
		now:    time.Now,
		logger: log.WithWorkerID(self.String()).With().Str("component", "engine").Logger(),
	}
}

// Self returns the identity flights are recovered to
func (e *Local) Self() types.WorkerID {
	return e.self
}

// Register records this worker in the ledger
func (e *Local) Register(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.store.RegisterWorker(e.self, e.now()); err != nil {
		return fmt.Errorf("engine: register %s: %w", e.self, err)
	}
	return nil
}

// Submit creates a queued flight owned by this worker
func (e *Local) Submit(ctx context.Context, flightID string) (*types.Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := e.now()
	f := &types.Flight{
		ID:        flightID,
		Owner:     e.self,
		Status:    types.FlightStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateFlight(f); err != nil {
		return nil, fmt.Errorf("engine: submit %s: %w", flightID, err)
	}
	return f, nil
}

// Finish records the final status of a flight. Only success and error are
// accepted, and a flight that already finished is left untouched.
func (e *Local) Finish(ctx context.Context, flightID string, status types.FlightStatus) (*types.Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if status != types.FlightStatusSuccess && status != types.FlightStatusError {
		return nil, fmt.Errorf("engine: finish %s: %q is not a final status", flightID, status)
	}

	f, err := e.store.GetFlight(flightID)
	if err != nil {
		return nil, fmt.Errorf("engine: finish %s: %w", flightID, err)
	}
	if !f.Status.Unfinished() {
		return nil, fmt.Errorf("engine: finish %s: %w", flightID, ErrAlreadyFinished)
	}

	f.Status = status
	f.UpdatedAt = e.now()
	if err := e.store.UpdateFlight(f); err != nil {
		return nil, fmt.Errorf("engine: finish %s: %w", flightID, err)
	}
	return f, nil
}

// ListKnownWorkers returns registered workers plus every owner of an
// unfinished flight, without duplicates
func (e *Local) ListKnownWorkers(ctx context.Context) ([]types.WorkerID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registered, err := e.store.ListWorkers()
	if err != nil {
		return nil, fmt.Errorf("engine: list workers: %w", err)
	}
	known := types.NewWorkerSet(registered...)

	flights, err := e.store.ListFlights()
	if err != nil {
		return nil, fmt.Errorf("engine: list flights: %w", err)
	}
	for _, f := range flights {
		if f.Status.Unfinished() && f.Owner != "" {
			known.Add(f.Owner)
		}
	}
	return known.Sorted(), nil
}

// Recover moves every unfinished flight owned by id to this worker in the
// ready state. Recovering a worker that owns nothing is a no-op, and a dead
// worker other than self is dropped from the registry.
func (e *Local) Recover(ctx context.Context, id types.WorkerID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	moved, err := e.store.ReassignFlights(id, e.self, e.now())
	if err != nil {
		return fmt.Errorf("engine: recover %s: %w", id, err)
	}

	if id != e.self {
		if err := e.store.DeregisterWorker(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("engine: deregister %s: %w", id, err)
		}
	}

	e.logger.Info().
		Str("from", id.String()).
		Int("flights", len(moved)).
		Msg("flights recovered")
	return nil
}
