package engine

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/flightwatch/pkg/storage"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, self types.WorkerID) (*Local, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := NewLocal(store, self)
	e.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return e, store
}

func TestListKnownWorkers(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "pod-1")

	require.NoError(t, e.Register(ctx))
	require.NoError(t, store.CreateFlight(&types.Flight{ID: "a", Owner: "pod-3", Status: types.FlightStatusRunning}))
	require.NoError(t, store.CreateFlight(&types.Flight{ID: "b", Owner: "pod-4", Status: types.FlightStatusSuccess}))
	require.NoError(t, store.CreateFlight(&types.Flight{ID: "c", Owner: "pod-1", Status: types.FlightStatusQueued}))

	known, err := e.ListKnownWorkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.WorkerID{"pod-1", "pod-3"}, known)
}

func TestListKnownWorkersEmpty(t *testing.T) {
	e, _ := newTestEngine(t, "pod-1")

	known, err := e.ListKnownWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, known)
}

func TestRecoverMovesFlights(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "pod-1")
	require.NoError(t, store.RegisterWorker("pod-2", time.Now()))
	require.NoError(t, store.CreateFlight(&types.Flight{ID: "a", Owner: "pod-2", Status: types.FlightStatusRunning}))
	require.NoError(t, store.CreateFlight(&types.Flight{ID: "b", Owner: "pod-2", Status: types.FlightStatusError}))

	require.NoError(t, e.Recover(ctx, "pod-2"))

	a, err := store.GetFlight("a")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerID("pod-1"), a.Owner)
	assert.Equal(t, types.FlightStatusReady, a.Status)

	b, err := store.GetFlight("b")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerID("pod-2"), b.Owner)

	known, err := e.ListKnownWorkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.WorkerID{"pod-1"}, known, "recovered worker is forgotten")

	// Idempotent
	require.NoError(t, e.Recover(ctx, "pod-2"))
}

func TestRecoverSelfResetsRunningFlights(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "pod-1")
	require.NoError(t, e.Register(ctx))

	f, err := e.Submit(ctx, "fl-1")
	require.NoError(t, err)
	f.Status = types.FlightStatusRunning
	require.NoError(t, store.UpdateFlight(f))

	require.NoError(t, e.Recover(ctx, "pod-1"))

	got, err := store.GetFlight("fl-1")
	require.NoError(t, err)
	assert.Equal(t, types.FlightStatusReady, got.Status)

	workers, err := store.ListWorkers()
	require.NoError(t, err)
	assert.Equal(t, []types.WorkerID{"pod-1"}, workers, "self stays registered")
}

func TestRecoverUnknownWorkerIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, "pod-1")
	assert.NoError(t, e.Recover(context.Background(), "ghost"))
}

func TestSubmitAndFinish(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, "pod-1")

	f, err := e.Submit(ctx, "fl-1")
	require.NoError(t, err)
	assert.Equal(t, types.FlightStatusQueued, f.Status)
	assert.Equal(t, types.WorkerID("pod-1"), f.Owner)

	done, err := e.Finish(ctx, "fl-1", types.FlightStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, types.FlightStatusSuccess, done.Status)

	got, err := store.GetFlight("fl-1")
	require.NoError(t, err)
	assert.Equal(t, types.FlightStatusSuccess, got.Status)

	_, err = e.Finish(ctx, "fl-1", types.FlightStatusError)
	assert.ErrorIs(t, err, ErrAlreadyFinished)

	// A finished flight no longer keeps its owner known
	known, err := e.ListKnownWorkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, known)
}

func TestFinishRejects(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, "pod-1")
	_, err := e.Submit(ctx, "fl-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       string
		status   types.FlightStatus
		notFound bool
	}{
		{name: "unfinished status", id: "fl-1", status: types.FlightStatusRunning},
		{name: "unknown status", id: "fl-1", status: "paused"},
		{name: "missing flight", id: "nope", status: types.FlightStatusSuccess, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Finish(ctx, tt.id, tt.status)
			require.Error(t, err)
			if tt.notFound {
				assert.ErrorIs(t, err, storage.ErrNotFound)
			}
		})
	}
}

func TestCancelledContext(t *testing.T) {
	e, _ := newTestEngine(t, "pod-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Recover(ctx, "pod-2"), context.Canceled)
	_, err := e.ListKnownWorkers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
