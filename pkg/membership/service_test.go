package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/flightwatch/pkg/events"
	"github.com/cuemby/flightwatch/pkg/kube"
	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func inClusterConfig() Config {
	return Config{InCluster: true, Watch: testWatchConfig()}
}

func TestServiceOutsideClusterReportsDefault(t *testing.T) {
	s := NewService(nil, Config{InCluster: false, Watch: testWatchConfig()})

	s.Start(func(context.Context, types.WorkerID) {})

	assert.Equal(t, DefaultActiveCount, s.ActiveCount())
	assert.False(t, s.WatcherRunning())

	live, err := s.SnapshotLiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live)

	assert.True(t, s.Stop(time.Second))
}

func TestServiceActiveCountFollowsWatch(t *testing.T) {
	fc := newFakeCluster()
	s := NewService(fc, inClusterConfig())
	s.sleep = (&sleepRecorder{}).sleep

	s.Start(nil)
	defer s.Stop(time.Second)

	fw := fc.nextWatcher(t)
	fw.Add(pod("svc-1"))
	fw.Add(pod("svc-2"))
	fw.Add(pod("db-0"))

	require.Eventually(t, func() bool { return s.ActiveCount() == 2 }, 5*time.Second, time.Millisecond)
	assert.True(t, s.WatcherRunning())

	fw.Delete(pod("svc-2"))
	require.Eventually(t, func() bool { return s.ActiveCount() == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, types.WorkerStateDeleted, s.Members()["svc-2"])
}

func TestServiceStartTwiceIsNoop(t *testing.T) {
	fc := newFakeCluster()
	s := NewService(fc, inClusterConfig())

	s.Start(nil)
	s.Start(nil)
	defer s.Stop(time.Second)

	fc.nextWatcher(t)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fc.Calls())
}

func TestServiceSnapshotLiveWorkers(t *testing.T) {
	fc := newFakeCluster()
	fc.pods = []string{"svc-1", "svc-2", "redis-0", ""}
	s := NewService(fc, inClusterConfig())

	live, err := s.SnapshotLiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.WorkerID{"svc-1", "svc-2"}, live.Sorted())
}

func TestServiceSnapshotLiveWorkersError(t *testing.T) {
	fc := newFakeCluster()
	fc.listErr = errors.New("forbidden: pods is forbidden")
	s := NewService(fc, inClusterConfig())

	_, err := s.SnapshotLiveWorkers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClusterAPI)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestServiceStopDuringLongBackoff(t *testing.T) {
	fc := newFakeCluster()
	fc.alwaysErr = errConnRefused
	cfg := inClusterConfig()
	cfg.Watch.InitialBackoff = 30 * time.Second
	cfg.Watch.MaxBackoff = 30 * time.Second
	s := NewService(fc, cfg)

	s.Start(nil)
	require.Eventually(t, func() bool { return fc.Calls() >= 1 }, 5*time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	assert.True(t, s.Stop(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, s.WatcherRunning())
	assert.NoError(t, s.WatcherErr(), "shutdown is not an error")
	assert.Equal(t, 1, fc.Calls())
}

func TestServiceStopTimesOut(t *testing.T) {
	fc := newFakeCluster()
	block := make(chan struct{})
	defer close(block)

	s := NewService(fc, inClusterConfig())
	s.Start(func(context.Context, types.WorkerID) { <-block })

	fw := fc.nextWatcher(t)
	fw.Add(pod("svc-1"))
	fw.Delete(pod("svc-1"))
	require.Eventually(t, func() bool {
		return s.Members()["svc-1"] == types.WorkerStateDeleted
	}, 5*time.Second, time.Millisecond)

	// The watcher is stuck in the callback and cannot observe the signal
	assert.False(t, s.Stop(50*time.Millisecond))
}

func TestServiceStartAfterStopIsNoop(t *testing.T) {
	fc := newFakeCluster()
	s := NewService(fc, inClusterConfig())

	assert.True(t, s.Stop(time.Second))
	s.Start(nil)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fc.Calls())
	assert.False(t, s.WatcherRunning())
	assert.Equal(t, DefaultActiveCount, s.ActiveCount())
}

func TestServiceStopWithoutStart(t *testing.T) {
	s := NewService(newFakeCluster(), inClusterConfig())
	assert.True(t, s.Stop(time.Millisecond))
}

func TestServiceExhaustedRetries(t *testing.T) {
	fc := newFakeCluster()
	fc.alwaysErr = errConnRefused
	cfg := inClusterConfig()
	cfg.Watch.MaxRetries = 3
	cfg.Watch.InitialBackoff = time.Millisecond
	cfg.Watch.MaxBackoff = time.Millisecond

	m := metrics.New()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	s := NewService(fc, cfg, WithMetrics(m), WithPublisher(broker))
	s.Start(nil)

	require.Eventually(t, func() bool { return !s.WatcherRunning() }, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, s.WatcherErr(), ErrRetriesExhausted)
	assert.Equal(t, 3, fc.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatchExhausted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WatchReconnects))

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventWatchExhausted, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no watch.exhausted event")
	}

	// No automatic restart
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, fc.Calls())
	assert.True(t, s.Stop(time.Second))
}

func TestServiceOverKubeClient(t *testing.T) {
	cs := fake.NewClientset()
	opened := make(chan *watch.FakeWatcher, 4)
	cs.PrependWatchReactor("pods", func(action k8stesting.Action) (bool, watch.Interface, error) {
		fw := watch.NewFakeWithChanSize(10, false)
		opened <- fw
		return true, fw, nil
	})

	recovered := &recoveryRecorder{}
	s := NewService(kube.New(cs, "flights"), inClusterConfig())
	s.Start(recovered.onDeleted)
	defer s.Stop(time.Second)

	var fw *watch.FakeWatcher
	select {
	case fw = <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("watch was never opened")
	}

	fw.Add(pod("svc-3"))
	fw.Delete(pod("svc-3"))

	require.Eventually(t, func() bool {
		return len(recovered.IDs()) == 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, []types.WorkerID{"svc-3"}, recovered.IDs())
	assert.Equal(t, 0, s.ActiveCount())
}
