// Package asyncstate tracks the lifecycle of asynchronous operations per
// store path.
package asyncstate

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

type Status int

const (
	Idle Status = iota
	Loading
	Success
	Error
)

var statusNames = [...]string{
	Idle:    "idle",
	Loading: "loading",
	Success: "success",
	Error:   "error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// State is the last recorded transition at a path. RequestID names the
// command that wrote it.
type State struct {
	Status    Status
	Err       error
	Timestamp time.Time
	RequestID string
}

// Table holds at most one State per canonical path together with the set of
// command ids that have started and not yet settled.
//
// A Table is not safe for concurrent use; the store confines it to its
// owner goroutine.
type Table struct {
	states  map[string]State
	pending map[string]struct{}
	now     func() time.Time
}

func New() *Table {
	return &Table{
		states:  map[string]State{},
		pending: map[string]struct{}{},
		now:     time.Now,
	}
}

// Start marks path loading on behalf of id.
func (t *Table) Start(path, id string) {
	t.states[path] = State{Status: Loading, Timestamp: t.now(), RequestID: id}
	t.pending[id] = struct{}{}
}

// Succeed marks path successful at ts.
func (t *Table) Succeed(path, id string, ts time.Time) {
	t.states[path] = State{Status: Success, Timestamp: ts, RequestID: id}
	delete(t.pending, id)
}

// Fail records err at path.
func (t *Table) Fail(path, id string, err error) {
	t.states[path] = State{Status: Error, Err: err, Timestamp: t.now(), RequestID: id}
	delete(t.pending, id)
}

// Cancel returns path to idle.
func (t *Table) Cancel(path, id string) {
	t.states[path] = State{Status: Idle, Timestamp: t.now(), RequestID: id}
	delete(t.pending, id)
}

// Reset returns a tracked path to idle, keeping its request id. Untracked
// paths are left alone.
func (t *Table) Reset(path string) {
	st, ok := t.states[path]
	if !ok {
		return
	}
	t.states[path] = State{Status: Idle, Timestamp: t.now(), RequestID: st.RequestID}
}

func (t *Table) Get(path string) (State, bool) {
	st, ok := t.states[path]
	return st, ok
}

// Paths returns every tracked path in sorted order.
func (t *Table) Paths() []string {
	return slices.Sorted(maps.Keys(t.states))
}

func (t *Table) IsPending(id string) bool {
	_, ok := t.pending[id]
	return ok
}

// PendingIDs returns the started and unsettled command ids in sorted order.
func (t *Table) PendingIDs() []string {
	return slices.Sorted(maps.Keys(t.pending))
}
