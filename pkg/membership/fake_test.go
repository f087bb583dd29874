package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/flightwatch/pkg/types"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
)

// fakeCluster hands out scripted watch sessions. Call i of WatchPods fails with
// openErrs[i] when that entry is non-nil, otherwise it opens a FakeWatcher
// that the test drives through the opened channel.
type fakeCluster struct {
	mu        sync.Mutex
	openErrs  []error
	alwaysErr error
	calls     int
	opened    chan *watch.FakeWatcher

	pods    []string
	listErr error
}

func newFakeCluster(openErrs ...error) *fakeCluster {
	return &fakeCluster{
		openErrs: openErrs,
		opened:   make(chan *watch.FakeWatcher, 16),
	}
}

func (f *fakeCluster) WatchPods(ctx context.Context) (watch.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if f.alwaysErr != nil {
		return nil, f.alwaysErr
	}
	if i < len(f.openErrs) && f.openErrs[i] != nil {
		return nil, f.openErrs[i]
	}

	fw := watch.NewFakeWithChanSize(100, false)
	f.opened <- fw
	return fw, nil
}

func (f *fakeCluster) ListPods(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.pods...), nil
}

func (f *fakeCluster) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCluster) nextWatcher(t *testing.T) *watch.FakeWatcher {
	t.Helper()
	select {
	case fw := <-f.opened:
		return fw
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the watcher to open a watch")
		return nil
	}
}

// sleepRecorder replaces the backoff sleep so tests run instantly
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// recoveryRecorder collects the identities passed to the deletion callback
type recoveryRecorder struct {
	mu  sync.Mutex
	ids []types.WorkerID
}

func (r *recoveryRecorder) onDeleted(_ context.Context, id types.WorkerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recoveryRecorder) IDs() []types.WorkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.WorkerID(nil), r.ids...)
}

func pod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "flights"},
	}
}
