package membership

import (
	"github.com/cuemby/flightwatch/pkg/types"
	"github.com/puzpuzpuz/xsync/v4"
)

// Table maps worker identities to their observed lifecycle state.
// It is written by the watcher goroutine and read from any goroutine.
//
// Entries are created as running and only ever move running -> deleted, except
// that a later ADDED for the same pod name marks it running again. Entries
// never expire.
type Table struct {
	states *xsync.Map[types.WorkerID, types.WorkerState]
}

// NewTable creates an empty membership table
func NewTable() *Table {
	return &Table{
		states: xsync.NewMap[types.WorkerID, types.WorkerState](),
	}
}

// RecordRunning marks id as running, creating or overwriting its entry
func (t *Table) RecordRunning(id types.WorkerID) {
	t.states.Store(id, types.WorkerStateRunning)
}

// RecordDeletedIfRunning moves id from running to deleted and reports whether
// that transition happened. Unknown and already deleted workers are left alone.
func (t *Table) RecordDeletedIfRunning(id types.WorkerID) bool {
	transitioned := false
	t.states.Compute(id, func(old types.WorkerState, loaded bool) (types.WorkerState, xsync.ComputeOp) {
		if !loaded || old != types.WorkerStateRunning {
			return old, xsync.CancelOp
		}
		transitioned = true
		return types.WorkerStateDeleted, xsync.UpdateOp
	})
	return transitioned
}

// State returns the recorded state of id
func (t *Table) State(id types.WorkerID) (types.WorkerState, bool) {
	return t.states.Load(id)
}

// ActiveCount returns the number of running workers
func (t *Table) ActiveCount() int {
	count := 0
	t.states.Range(func(_ types.WorkerID, state types.WorkerState) bool {
		if state == types.WorkerStateRunning {
			count++
		}
		return true
	})
	return count
}

// Snapshot returns a copy of the table
func (t *Table) Snapshot() map[types.WorkerID]types.WorkerState {
	out := make(map[types.WorkerID]types.WorkerState, t.states.Size())
	t.states.Range(func(id types.WorkerID, state types.WorkerState) bool {
		out[id] = state
		return true
	})
	return out
}
