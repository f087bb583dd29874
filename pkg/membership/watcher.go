package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/flightwatch/pkg/backoff"
	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/kube"
	"github.com/cuemby/flightwatch/pkg/log"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/rs/zerolog"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"
)

// ErrRetriesExhausted is returned by the watcher once it has failed the
// configured number of times in a row. Membership tracking stops for good.
var ErrRetriesExhausted = errors.New("membership: pod watch retries exhausted")

var errStreamClosed = errors.New("watch stream closed by server")

// ClusterAPI is the part of the cluster API the membership layer consumes
type ClusterAPI interface {
	// WatchPods opens a pod watch that first replays every existing pod as
	// ADDED and then streams changes
	WatchPods(ctx context.Context) (watch.Interface, error)

	// ListPods returns the names of the pods that exist right now
	ListPods(ctx context.Context) ([]string, error)
}

// DeletedFunc is invoked when a running worker is observed deleted
type DeletedFunc func(ctx context.Context, id types.WorkerID)

// WatchConfig controls pod filtering and reconnect behaviour
type WatchConfig struct {
	NameFilter     string        // Substring a pod name must contain to be tracked
	InitialBackoff time.Duration // Wait after the first failure
	MaxBackoff     time.Duration // Cap on the doubled wait
	MaxRetries     int           // Consecutive failures before giving up
}

// sessionEnd describes why one watch connection ended
type sessionEnd int

const (
	sessionShutdown sessionEnd = iota // Shutdown requested, leave the loop
	sessionFailed                     // Open failed or stream ended, retry
)

// Watcher turns pod watch events into membership transitions
type Watcher struct {
	api       ClusterAPI
	table     *Table
	signal    *ShutdownSignal
	onDeleted DeletedFunc
	cfg       WatchConfig
	backoff   *backoff.Exponential
	metrics   *metrics.Metrics
	publisher events.Publisher
	sleep     func(ctx context.Context, d time.Duration) error
	logger    zerolog.Logger
}

func newWatcher(api ClusterAPI, table *Table, signal *ShutdownSignal, onDeleted DeletedFunc, cfg WatchConfig) *Watcher {
	return &Watcher{
		api:       api,
		table:     table,
		signal:    signal,
		onDeleted: onDeleted,
		cfg:       cfg,
		backoff:   backoff.NewExponential(cfg.InitialBackoff, cfg.MaxBackoff),
		publisher: events.Discard,
		sleep:     sleepContext,
		logger:    log.WithComponent("watcher"),
	}
}

// Run watches pods until shutdown is requested, ctx is cancelled or the retry
// budget is spent. It returns nil on shutdown and ErrRetriesExhausted otherwise.
func (w *Watcher) Run(ctx context.Context) error {
	failures := 0

	for {
		if w.signal.IsSet() || ctx.Err() != nil {
			return nil
		}

		end, err := w.session(ctx, &failures)
		if end == sessionShutdown {
			w.logger.Info().Msg("pod watch stopped")
			return nil
		}

		failures++
		w.metrics.SetWatchFailures(failures)

		if failures >= w.cfg.MaxRetries {
			w.logger.Error().
				Err(err).
				Int("attempt", failures).
				Msg("pod watch failed too many times in a row, membership tracking stopped")
			w.metrics.SetWatchExhausted(true)
			w.publisher.Publish(&events.Event{
				Type:    events.EventWatchExhausted,
				Message: fmt.Sprintf("pod watch gave up after %d consecutive failures", failures),
			})
			return ErrRetriesExhausted
		}

		delay := w.backoff.Delay(failures)
		w.logger.Warn().
			Err(err).
			Int("attempt", failures).
			Dur("backoff", delay).
			Msg("pod watch ended, reconnecting")

		if err := w.sleep(ctx, delay); err != nil {
			w.logger.Info().Msg("pod watch stopped during backoff")
			return nil
		}
		w.metrics.IncWatchReconnects()
	}
}

// session runs one watch connection until it ends
func (w *Watcher) session(ctx context.Context, failures *int) (sessionEnd, error) {
	stream, err := w.api.WatchPods(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return sessionShutdown, nil
		}
		return sessionFailed, err
	}
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return sessionShutdown, nil

		case ev, ok := <-stream.ResultChan():
			if !ok {
				if ctx.Err() != nil {
					return sessionShutdown, nil
				}
				return sessionFailed, errStreamClosed
			}
			if w.signal.IsSet() {
				return sessionShutdown, nil
			}
			if ev.Type == watch.Error {
				w.metrics.ObserveWatchEvent(string(ev.Type))
				return sessionFailed, apierrors.FromObject(ev.Object)
			}

			// A delivered event proves the connection is healthy
			*failures = 0
			w.metrics.SetWatchFailures(0)

			w.handle(ctx, ev)
		}
	}
}

// handle applies one event to the membership table
func (w *Watcher) handle(ctx context.Context, ev watch.Event) {
	w.metrics.ObserveWatchEvent(string(ev.Type))

	name := kube.ObjectName(ev.Object)
	if name == "" {
		return
	}
	if !strings.Contains(name, w.cfg.NameFilter) {
		return
	}
	id := types.WorkerID(name)

	switch ev.Type {
	case watch.Added:
		w.table.RecordRunning(id)
		w.logger.Debug().Str("worker_id", name).Msg("worker running")
		w.publisher.Publish(events.WorkerEvent(events.EventWorkerRunning, name, "pod added"))

	case watch.Deleted:
		if !w.table.RecordDeletedIfRunning(id) {
			return
		}
		w.logger.Info().Str("worker_id", name).Msg("worker deleted, triggering recovery")
		w.publisher.Publish(events.WorkerEvent(events.EventWorkerDeleted, name, "pod deleted"))
		w.notifyDeleted(ctx, id)
	}
}

// notifyDeleted runs the deletion callback; nothing it does may end the watch
func (w *Watcher) notifyDeleted(ctx context.Context, id types.WorkerID) {
	if w.onDeleted == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("worker_id", id.String()).
				Interface("panic", r).
				Msg("worker deletion handler panicked")
		}
	}()
	w.onDeleted(ctx, id)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
