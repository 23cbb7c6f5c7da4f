package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signadot/pathstore/asyncstate"
	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

func newStore(t *testing.T, initial any) *Store {
	t.Helper()
	s, err := New(&Spec{Initial: initial})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func wait(t *testing.T, h *sched.Handle) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("command %s at %s did not settle", h.ID(), h.Command().Path)
	}
	return v, err
}

func get(t *testing.T, s *Store, path string) any {
	t.Helper()
	v, _, err := s.GetAt(path)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func state(t *testing.T, s *Store, path string) asyncstate.State {
	t.Helper()
	st, ok, err := s.ReadAsyncState(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("no async state at %s", path)
	}
	return st
}

func ok(v any) sched.Operation {
	return func(context.Context) (any, error) { return v, nil }
}

func fail(err error) sched.Operation {
	return func(context.Context) (any, error) { return nil, err }
}

// gate returns an operation that blocks until release is closed and then
// returns v.
func gate(v any) (sched.Operation, func()) {
	release := make(chan struct{})
	return func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, func() { close(release) }
}

func TestGetSet(t *testing.T) {
	s := newStore(t, nil)
	if err := s.SetAt("/users[1]/name", "bob", tree.Replace); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAt("/users[1]", map[string]any{"age": 3}, tree.Merge); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"users": []any{map[string]any{}, map[string]any{"name": "bob", "age": 3}}}
	if diff := cmp.Diff(want, get(t, s, "/")); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
	if _, ok, _ := s.GetAt("/users[5]"); ok {
		t.Error("out of bounds index should be absent")
	}
}

func TestInvalidPath(t *testing.T) {
	s := newStore(t, nil)
	if _, _, err := s.GetAt("/a[x"); !errors.Is(err, xpath.ErrInvalidPath) {
		t.Errorf("GetAt: %v", err)
	}
	if err := s.SetAt("/a]", 1, tree.Replace); !errors.Is(err, xpath.ErrInvalidPath) {
		t.Errorf("SetAt: %v", err)
	}
	if _, err := s.Fetch("/a[]", ok(1)); !errors.Is(err, xpath.ErrInvalidPath) {
		t.Errorf("Fetch: %v", err)
	}
	if st, _ := s.Stats(); st.Pending+st.Executing != 0 {
		t.Errorf("invalid submission was queued: %+v", st)
	}
}

func TestFetchWritesResult(t *testing.T) {
	s := newStore(t, nil)
	h, err := s.Fetch("/user", ok(map[string]any{"name": "ann"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wait(t, h); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("ann", get(t, s, "/user/name")); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
	st := state(t, s, "user")
	if st.Status != asyncstate.Success || st.RequestID != h.ID() {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestFetchLoadingState(t *testing.T) {
	s := newStore(t, nil)
	op, release := gate(1)
	h, _ := s.Fetch("/a", op)
	if st := state(t, s, "/a"); st.Status != asyncstate.Loading {
		t.Errorf("status while running = %s", st.Status)
	}
	release()
	wait(t, h)
	if st := state(t, s, "/a"); st.Status != asyncstate.Success {
		t.Errorf("status after = %s", st.Status)
	}
}

func TestWriteOpAndDiscard(t *testing.T) {
	s := newStore(t, map[string]any{"tags": []any{"a"}})
	h, _ := s.Mutate("/tags", ok("b"), WithWriteOp(tree.Append))
	wait(t, h)
	h, _ = s.Fetch("/tags", ok("ignored"), DiscardResult())
	wait(t, h)
	if diff := cmp.Diff([]any{"a", "b"}, get(t, s, "/tags")); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestOptimisticCommit(t *testing.T) {
	s := newStore(t, map[string]any{"n": 1})
	op, release := gate(3)
	h, err := s.Mutate("/n", op, WithOptimistic(2))
	if err != nil {
		t.Fatal(err)
	}
	if got := get(t, s, "/n"); got != 2 {
		t.Errorf("optimistic value = %v, want 2", got)
	}
	if st, _ := s.Stats(); st.Optimistic != 1 {
		t.Errorf("ledger size = %d", st.Optimistic)
	}
	release()
	wait(t, h)
	if got := get(t, s, "/n"); got != 3 {
		t.Errorf("committed value = %v, want 3", got)
	}
	if st, _ := s.Stats(); st.Optimistic != 0 {
		t.Errorf("ledger not cleared: %d", st.Optimistic)
	}
}

func TestOptimisticRollbackOnError(t *testing.T) {
	t0 := map[string]any{"n": 1, "other": map[string]any{"x": true}}
	s := newStore(t, t0)
	boom := errors.New("boom")
	h, _ := s.Mutate("/n", fail(boom), WithOptimistic(2))
	if _, err := wait(t, h); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	snap, _ := s.Snapshot()
	if !tree.Same(snap, t0) {
		t.Errorf("rollback did not restore the original tree: %v", snap)
	}
	st := state(t, s, "/n")
	if st.Status != asyncstate.Error || !errors.Is(st.Err, boom) {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestOptimisticKeptWithoutRollback(t *testing.T) {
	s := newStore(t, map[string]any{"n": 1})
	h, _ := s.Mutate("/n", fail(errors.New("boom")), WithOptimistic(2), WithRollbackOnError(false))
	wait(t, h)
	if got := get(t, s, "/n"); got != 2 {
		t.Errorf("value = %v, want the optimistic 2", got)
	}
	if st, _ := s.Stats(); st.Optimistic != 0 {
		t.Errorf("ledger not cleared: %d", st.Optimistic)
	}
}

func TestCancelRollsBack(t *testing.T) {
	t0 := map[string]any{"n": 1}
	s := newStore(t, t0)
	op, release := gate(3)
	defer release()
	h, _ := s.Mutate("/n", op, WithOptimistic(2), WithRollbackOnError(false))
	if !s.Cancel(h.ID()) {
		t.Fatal("Cancel reported false")
	}
	if _, err := wait(t, h); !errors.Is(err, sched.ErrCancelled) {
		t.Errorf("got %v", err)
	}
	snap, _ := s.Snapshot()
	if !tree.Same(snap, t0) {
		t.Errorf("cancel did not roll back: %v", snap)
	}
	if st := state(t, s, "/n"); st.Status != asyncstate.Idle {
		t.Errorf("status = %s, want idle", st.Status)
	}
	if s.Cancel(h.ID()) {
		t.Error("second cancel should be a no-op")
	}
}

func TestRetryExhaustion(t *testing.T) {
	s := newStore(t, nil)
	var calls atomic.Int32
	h, _ := s.Fetch("/a", func(context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("down")
	}, WithRetry(2, time.Millisecond))
	_, err := wait(t, h)
	var opErr *sched.OperationError
	if !errors.As(err, &opErr) || opErr.Attempts != 3 {
		t.Errorf("got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("invocations = %d, want 3", calls.Load())
	}
	if st := state(t, s, "/a"); st.Status != asyncstate.Error {
		t.Errorf("status = %s", st.Status)
	}
}

func TestCancelByPath(t *testing.T) {
	s := newStore(t, nil)
	op, release := gate(1)
	defer release()
	a1, _ := s.Fetch("/a", op)
	a2, _ := s.Fetch("a", op)
	b, _ := s.Fetch("/a/b", op)
	n, err := s.CancelByPath("/a")
	if err != nil || n != 2 {
		t.Fatalf("got %d, %v", n, err)
	}
	for _, h := range []*sched.Handle{a1, a2} {
		if _, err := wait(t, h); !errors.Is(err, sched.ErrCancelled) {
			t.Errorf("%s: %v", h.ID(), err)
		}
	}
	if n := s.CancelAll(); n != 1 {
		t.Errorf("CancelAll = %d", n)
	}
	if _, err := wait(t, b); !errors.Is(err, sched.ErrCancelled) {
		t.Errorf("got %v", err)
	}
}

func TestPriority(t *testing.T) {
	s, err := New(&Spec{Config: &Config{MaxConcurrent: 1, RollbackOnError: true}})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	block, release := gate(nil)
	s.Fetch("/block", block, DiscardResult())
	var order []string
	record := func(name string) sched.Operation {
		return func(context.Context) (any, error) {
			order = append(order, name)
			return name, nil
		}
	}
	low, _ := s.Fetch("/low", record("low"), WithPriority(sched.Low))
	mut, _ := s.Mutate("/mut", record("mutate"))
	fetch, _ := s.Fetch("/fetch", record("fetch"))
	release()
	wait(t, low)
	wait(t, mut)
	wait(t, fetch)
	if diff := cmp.Diff([]string{"mutate", "fetch", "low"}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestOnChange(t *testing.T) {
	var changes []any
	s, err := New(&Spec{OnChange: func(_, t any) { changes = append(changes, t) }})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.SetAt("/a", 1, tree.Replace)
	s.SetAt("/missing", nil, tree.Delete)
	h, _ := s.Fetch("/b", ok(2))
	wait(t, h)
	s.Snapshot()
	want := []any{
		map[string]any{"a": 1},
		map[string]any{"a": 1, "b": 2},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestApplyJSONPatch(t *testing.T) {
	s := newStore(t, map[string]any{"a": "x", "list": []any{"p"}})
	patch := []byte(`[
		{"op": "replace", "path": "/a", "value": "y"},
		{"op": "add", "path": "/list/-", "value": "q"},
		{"op": "add", "path": "/n", "value": 1}
	]`)
	if err := s.ApplyJSONPatch(patch); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": "y", "list": []any{"p", "q"}, "n": float64(1)}
	if diff := cmp.Diff(want, get(t, s, "/")); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
	if err := s.ApplyJSONPatch([]byte(`[{"op": "add", "path": "/nope/deeper", "value": 1}]`)); err == nil {
		t.Error("expected error adding below a missing key")
	}
	if err := s.ApplyJSONPatch([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestClose(t *testing.T) {
	s, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	op, release := gate(1)
	defer release()
	h, _ := s.Fetch("/a", op)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := wait(t, h); !errors.Is(err, sched.ErrCancelled) {
		t.Errorf("in-flight command: %v", err)
	}
	if _, _, err := s.GetAt("/a"); !errors.Is(err, ErrClosed) {
		t.Errorf("GetAt after Close: %v", err)
	}
	if _, err := s.Fetch("/a", ok(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Fetch after Close: %v", err)
	}
	if s.Cancel(h.ID()) {
		t.Error("Cancel after Close should report false")
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close: %v", err)
	}
}

func TestMetricsPerStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(&Spec{Name: "a", Registerer: reg})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(&Spec{Name: "b", Registerer: reg})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, err := New(&Spec{Name: "a", Registerer: reg}); err == nil {
		t.Error("a second store named a should fail to register its metrics")
	}
	h, _ := a.Fetch("/x", ok(1))
	wait(t, h)
	n, err := testutil.GatherAndCount(reg, "pathstore_sched_settled_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("settled series = %d, want 1", n)
	}
}

func TestStoresAreIndependent(t *testing.T) {
	a := newStore(t, nil)
	b := newStore(t, nil)
	a.SetAt("/x", 1, tree.Replace)
	h, _ := a.Fetch("/y", ok(2))
	wait(t, h)
	if _, ok, _ := b.GetAt("/x"); ok {
		t.Error("write leaked into another store")
	}
	if _, ok, _ := b.ReadAsyncState("/y"); ok {
		t.Error("async state leaked into another store")
	}
}
