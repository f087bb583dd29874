package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/rs/zerolog"
)

// ErrClusterAPI wraps failures of direct cluster API calls
var ErrClusterAPI = errors.New("membership: cluster API error")

// DefaultActiveCount is reported when no watcher runs, i.e. for a single
// instance outside a cluster
const DefaultActiveCount = 1

// Config holds configuration for the membership service
type Config struct {
	InCluster bool // When false the watcher is never started
	Watch     WatchConfig
}

// Service owns the membership table, the shutdown signal and the watcher goroutine
type Service struct {
	cfg       Config
	api       ClusterAPI
	table     *Table
	signal    ShutdownSignal
	metrics   *metrics.Metrics
	publisher events.Publisher
	sleep     func(ctx context.Context, d time.Duration) error
	logger    zerolog.Logger

	mu       sync.Mutex
	started  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	watchErr error
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records watcher metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher publishes membership events to p
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a membership service. api may be nil when the process
// does not run inside a cluster.
func NewService(api ClusterAPI, cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		api:       api,
		table:     NewTable(),
		publisher: events.Discard,
		sleep:     sleepContext,
		logger:    log.WithComponent("membership"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ActiveCount returns the number of running workers, or DefaultActiveCount
// when the watcher was never started
func (s *Service) ActiveCount() int {
	if !s.started.Load() {
		return DefaultActiveCount
	}
	return s.table.ActiveCount()
}

// InCluster reports whether the service tracks a cluster at all
func (s *Service) InCluster() bool {
	return s.cfg.InCluster
}

// Members returns a copy of the membership table
func (s *Service) Members() map[types.WorkerID]types.WorkerState {
	return s.table.Snapshot()
}

// SnapshotLiveWorkers lists the pods running right now, straight from the
// cluster API rather than from the watch. Outside a cluster the set is empty.
func (s *Service) SnapshotLiveWorkers(ctx context.Context) (types.WorkerSet, error) {
	live := types.NewWorkerSet()
	if !s.cfg.InCluster || s.api == nil {
		return live, nil
	}

	names, err := s.api.ListPods(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClusterAPI, err)
	}
	for _, name := range names {
		if name != "" && strings.Contains(name, s.cfg.Watch.NameFilter) {
			live.Add(types.WorkerID(name))
		}
	}
	return live, nil
}

// Start launches the watcher goroutine with onDeleted as the recovery trigger.
// It does nothing outside a cluster, when the watcher was already started, or
// once Stop has been called.
func (s *Service) Start(onDeleted DeletedFunc) {
	if !s.cfg.InCluster || s.api == nil {
		s.logger.Info().Msg("not running in a cluster, pod watch disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return
	}
	if s.signal.IsSet() {
		s.logger.Info().Msg("stop already requested, pod watch not started")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w := newWatcher(s.api, s.table, &s.signal, onDeleted, s.cfg.Watch)
	w.metrics = s.metrics
	w.publisher = s.publisher
	w.sleep = s.sleep

	s.cancel = cancel
	s.done = done
	s.watchErr = nil
	s.started.Store(true)

	go func() {
		defer close(done)
		err := w.Run(ctx)

		s.mu.Lock()
		s.watchErr = err
		s.mu.Unlock()
	}()

	s.logger.Info().
		Str("name_filter", s.cfg.Watch.NameFilter).
		Int("max_retries", s.cfg.Watch.MaxRetries).
		Msg("pod watch started")
}

// Stop signals the watcher to shut down and waits up to timeout for it to
// exit. It returns false if the watcher was still running when time ran out.
func (s *Service) Stop(timeout time.Duration) bool {
	s.signal.Set()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return true
	}
	cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		s.logger.Warn().Dur("timeout", timeout).Msg("pod watch did not stop in time")
		return false
	}
}

// WatcherRunning reports whether the watcher goroutine is alive
func (s *Service) WatcherRunning() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// WatcherErr returns why the watcher exited, or nil if it is running or
// stopped on request
func (s *Service) WatcherErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchErr
}
