package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/membership"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned when Start is called more than once
var ErrAlreadyStarted = errors.New("recovery: coordinator already started")

var allStatuses = []string{
	string(types.StatusInitializing),
	string(types.StatusOK),
	string(types.StatusError),
	string(types.StatusShutdown),
}

// Engine is the workflow engine's recovery surface
type Engine interface {
	// Recover hands every unfinished flight owned by id to a live worker.
	// It must be a no-op for workers that own nothing.
	Recover(ctx context.Context, id types.WorkerID) error

	// ListKnownWorkers returns every worker the engine has seen own work
	ListKnownWorkers(ctx context.Context) ([]types.WorkerID, error)
}

// Membership is the cluster membership surface used by the coordinator
type Membership interface {
	SnapshotLiveWorkers(ctx context.Context) (types.WorkerSet, error)
	Start(onDeleted membership.DeletedFunc)
	Stop(timeout time.Duration) bool
}

// Coordinator recovers the work of dead workers: once at startup by diffing
// known against live workers, and afterwards for every deletion the
// membership watch reports
type Coordinator struct {
	self       types.WorkerID
	engine     Engine
	membership Membership
	metrics    *metrics.Metrics
	publisher  events.Publisher
	logger     zerolog.Logger

	mu        sync.RWMutex
	status    types.Status
	started   bool
	stopped   bool
	listeners []func(types.Status)
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMetrics records recovery metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithPublisher publishes recovery events to p
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// NewCoordinator creates a coordinator for the worker named self
func NewCoordinator(self types.WorkerID, engine Engine, mem Membership, opts ...Option) *Coordinator {
	c := &Coordinator{
		self:       self,
		engine:     engine,
		membership: mem,
		publisher:  events.Discard,
		logger:     log.WithComponent("recovery"),
		status:     types.StatusInitializing,
	}
	for _, o := range opts {
		o(c)
	}
	c.metrics.SetCoordinatorStatus(string(c.status), allStatuses...)
	return c
}

// Status returns the current coordinator status
func (c *Coordinator) Status() types.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// OnStatusChange registers fn to be called after every status transition
func (c *Coordinator) OnStatusChange(fn func(types.Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// setStatus moves to next unless the current status is terminal
func (c *Coordinator) setStatus(next types.Status) {
	c.mu.Lock()
	if c.status.Terminal() || c.status == next {
		c.mu.Unlock()
		return
	}
	prev := c.status
	c.status = next
	listeners := append([]func(types.Status){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Info().
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("coordinator status changed")
	c.metrics.SetCoordinatorStatus(string(next), allStatuses...)
	c.publisher.Publish(&events.Event{
		Type:     events.EventCoordinatorStatus,
		Message:  fmt.Sprintf("%s -> %s", prev, next),
		Metadata: map[string]string{"status": string(next)},
	})

	for _, fn := range listeners {
		fn(next)
	}
}

// ObsoleteWorkers computes the workers whose work must be recovered at
// startup: known minus live, plus this worker itself. A pod restarted in
// place keeps its name and is never reported deleted, so its previous
// incarnation's flights are only picked up through the self entry.
func (c *Coordinator) ObsoleteWorkers(ctx context.Context) (types.WorkerSet, error) {
	known, err := c.engine.ListKnownWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: list known workers: %w", err)
	}

	live, err := c.membership.SnapshotLiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: snapshot live workers: %w", err)
	}

	obsolete := types.NewWorkerSet(known...).Difference(live)
	obsolete.Add(c.self)
	return obsolete, nil
}

// Reconcile recovers every obsolete worker once, one at a time. A failed
// recovery is logged and the remaining workers are still processed; only
// failures to compute the obsolete set are returned.
func (c *Coordinator) Reconcile(ctx context.Context) (types.WorkerSet, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(c.metrics.ReconcileTimer())

	obsolete, err := c.ObsoleteWorkers(ctx)
	if err != nil {
		return nil, err
	}
	c.metrics.SetObsoleteWorkers(len(obsolete))

	ids := obsolete.Sorted()
	c.logger.Info().
		Int("count", len(ids)).
		Interface("workers", ids).
		Msg("reconciling obsolete workers")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return obsolete, fmt.Errorf("recovery: reconcile interrupted: %w", err)
		}
		c.recover(ctx, id, metrics.SourceStartup)
	}
	return obsolete, nil
}

// Start reconciles and then starts the membership watch. The watch must not
// run before reconciliation finishes, or a deletion seen live and the startup
// diff could recover the same worker concurrently.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	if _, err := c.Reconcile(ctx); err != nil {
		c.logger.Error().Err(err).Msg("startup reconciliation failed")
		c.setStatus(types.StatusError)
		return err
	}

	// A Stop that arrived during reconciliation wins: the watch never starts
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.logger.Info().Msg("stopped during startup reconciliation, pod watch not started")
		return nil
	}
	c.membership.Start(c.RecoverSingle)
	c.mu.Unlock()

	c.setStatus(types.StatusOK)
	return nil
}

// RecoverSingle recovers one worker reported deleted by the membership watch.
// Errors are logged and never returned to the watcher.
func (c *Coordinator) RecoverSingle(ctx context.Context, id types.WorkerID) {
	c.recover(ctx, id, metrics.SourceWatch)
}

// Stop shuts the membership watch down and waits up to timeout for it.
// It returns false if the watch did not stop in time. Called while Start is
// still reconciling, it moves straight to SHUTDOWN and keeps the watch from
// ever starting; an ERROR status is left as is.
func (c *Coordinator) Stop(timeout time.Duration) bool {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.setStatus(types.StatusShutdown)
	return c.membership.Stop(timeout)
}

func (c *Coordinator) recover(ctx context.Context, id types.WorkerID, source string) {
	logger := c.logger.With().
		Str("worker_id", id.String()).
		Str("source", source).
		Logger()

	err := c.callRecover(ctx, id)
	c.metrics.ObserveRecovery(source, err)

	if err != nil {
		logger.Error().Err(err).Msg("worker recovery failed")
		c.publisher.Publish(events.WorkerEvent(events.EventWorkerRecoveryFailed, id.String(), err.Error()))
		return
	}
	logger.Info().Msg("worker recovered")
	c.publisher.Publish(events.WorkerEvent(events.EventWorkerRecovered, id.String(), "flights recovered"))
}

// callRecover turns an engine panic into an error
func (c *Coordinator) callRecover(ctx context.Context, id types.WorkerID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery: engine panicked: %v", r)
		}
	}()
	return c.engine.Recover(ctx, id)
}
