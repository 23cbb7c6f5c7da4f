package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signadot/pathstore/asyncstate"
	"github.com/signadot/pathstore/batch"
	"github.com/signadot/pathstore/debug"
	"github.com/signadot/pathstore/optimistic"
	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

// Store is a path addressable tree with an attached command scheduler.
// It is safe for concurrent use.
type Store struct {
	name     string
	cfg      Config
	log      *slog.Logger
	loop     *sched.Loop
	onChange func(old, new any)
	batches  *batch.Coordinator

	// owned by loop
	tree     any
	states   *asyncstate.Table
	ledger   *optimistic.Ledger
	sched    *sched.Scheduler
	requests map[string]*request
	closed   bool
}

// request is the store side bookkeeping of a command, from submission
// until it settles.
type request struct {
	path xpath.Path
	key  string
	opts *submitOptions
}

// New creates a store from spec. A nil spec or spec.Config means
// DefaultConfig.
func New(spec *Spec) (*Store, error) {
	if spec == nil {
		spec = &Spec{}
	}
	cfg := spec.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = "default"
	}
	log := spec.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("store", name)
	var metrics *sched.Metrics
	if spec.Registerer != nil {
		m, err := sched.NewMetrics(spec.Registerer, prometheus.Labels{"store": name})
		if err != nil {
			return nil, fmt.Errorf("registering metrics for store %s: %w", name, err)
		}
		metrics = m
	}
	initial := spec.Initial
	if initial == nil {
		initial = map[string]any{}
	}
	s := &Store{
		name:     name,
		cfg:      *cfg,
		log:      log.With("component", "store"),
		loop:     sched.NewLoop(),
		onChange: spec.OnChange,
		tree:     initial,
		states:   asyncstate.New(),
		ledger:   optimistic.New(log),
		requests: map[string]*request{},
	}
	s.sched = sched.New(&sched.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		Poster:        s.loop,
		Hooks:         sched.Hooks{Settled: s.settled},
		Log:           log,
		Metrics:       metrics,
		Tracer:        spec.Tracer,
	})
	s.batches = batch.New(&batch.Config{
		Loop:    s.loop,
		Sink:    batchSink{s},
		Log:     log,
		Metrics: metrics,
		Tracer:  spec.Tracer,
	})
	return s, nil
}

func (s *Store) Name() string {
	return s.name
}

// do runs fn on the store loop.
func (s *Store) do(fn func()) error {
	if err := s.loop.Do(fn); err != nil {
		if errors.Is(err, sched.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// setTree installs t as the tree and notifies OnChange. Loop only.
func (s *Store) setTree(t any) {
	old := s.tree
	if tree.Same(old, t) {
		return
	}
	s.tree = t
	if debug.Store() {
		debug.Logf("store %s: tree\n%s", s.name, debug.Value(t))
	}
	if s.onChange != nil {
		s.onChange(old, t)
	}
}

// GetAt returns the value at path.
func (s *Store) GetAt(path string) (any, bool, error) {
	p, err := xpath.Parse(path)
	if err != nil {
		return nil, false, err
	}
	var (
		v  any
		ok bool
	)
	if err := s.do(func() { v, ok = tree.Get(s.tree, p) }); err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

// writePath parses a path that values will be written at and checks its
// indexes against MaxIndex.
func (s *Store) writePath(path string) (xpath.Path, error) {
	p, err := xpath.Parse(path)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxIndex == 0 {
		return p, nil
	}
	for _, seg := range p {
		if seg.Index != nil && *seg.Index > s.cfg.MaxIndex {
			return nil, fmt.Errorf("%w: index %d in %q exceeds %d", xpath.ErrInvalidPath, *seg.Index, path, s.cfg.MaxIndex)
		}
	}
	return p, nil
}

// SetAt edits the tree at path synchronously, without async tracking.
func (s *Store) SetAt(path string, value any, op tree.Op) error {
	p, err := s.writePath(path)
	if err != nil {
		return err
	}
	return s.do(func() { s.setTree(tree.Set(s.tree, p, value, op)) })
}

// Snapshot returns the current tree. It must be treated as immutable.
func (s *Store) Snapshot() (any, error) {
	var t any
	if err := s.do(func() { t = s.tree }); err != nil {
		return nil, err
	}
	return t, nil
}

// Submit schedules op against path. The returned handle settles with the
// operation's value, an *sched.OperationError, or sched.ErrCancelled.
func (s *Store) Submit(path string, kind sched.Kind, op sched.Operation, opts ...SubmitOption) (*sched.Handle, error) {
	p, err := s.writePath(path)
	if err != nil {
		return nil, err
	}
	o := s.submitOptions(kind, opts)
	cmd := s.command(p, kind, op, o)
	var h *sched.Handle
	err = s.do(func() {
		if s.closed {
			return
		}
		s.requests[cmd.ID] = &request{path: p, key: p.String(), opts: o}
		s.begin(cmd)
		h = s.sched.Enqueue(cmd)
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrClosed
	}
	return h, nil
}

// Fetch submits a fetch of path.
func (s *Store) Fetch(path string, op sched.Operation, opts ...SubmitOption) (*sched.Handle, error) {
	return s.Submit(path, sched.Fetch, op, opts...)
}

// Mutate submits a mutation of path.
func (s *Store) Mutate(path string, op sched.Operation, opts ...SubmitOption) (*sched.Handle, error) {
	return s.Submit(path, sched.Mutate, op, opts...)
}

func (s *Store) command(p xpath.Path, kind sched.Kind, op sched.Operation, o *submitOptions) *sched.Command {
	return &sched.Command{
		ID:       sched.NewID(),
		Path:     p,
		Kind:     kind,
		Priority: *o.priority,
		Retry:    o.retry,
		Op:       op,
	}
}

// begin marks the command's path loading and applies its optimistic value.
// Loop only.
func (s *Store) begin(cmd *sched.Command) {
	req, ok := s.requests[cmd.ID]
	if !ok {
		return
	}
	s.states.Start(req.key, cmd.ID)
	if !req.opts.optimistic {
		return
	}
	t, err := s.ledger.Apply(req.path, cmd.ID, req.opts.value, s.tree, req.opts.rollbackOnError)
	if err != nil {
		s.log.Warn("optimistic write not applied", "command", cmd.ID, "path", req.key, "error", err)
		return
	}
	s.setTree(t)
}

// settled applies the outcome of a command. It is the scheduler's settle
// hook and runs exactly once per command on the loop.
func (s *Store) settled(cmd *sched.Command, res *sched.Result) {
	req, ok := s.requests[cmd.ID]
	if !ok {
		return
	}
	delete(s.requests, cmd.ID)
	if debug.Store() {
		debug.Logf("store %s: %s %s %s\n", s.name, cmd.Kind, req.key, res.Outcome)
	}
	switch res.Outcome {
	case sched.Completed:
		s.states.Succeed(req.key, cmd.ID, res.At)
		switch {
		case req.opts.optimistic && req.opts.discard:
			s.ledger.Discard(cmd.ID, req.path)
		case req.opts.optimistic:
			if t, ok := s.ledger.Commit(cmd.ID, req.path, res.Value, s.tree); ok {
				s.setTree(t)
			}
		case !req.opts.discard:
			s.setTree(tree.Set(s.tree, req.path, res.Value, req.opts.writeOp))
		}
	case sched.Failed:
		s.states.Fail(req.key, cmd.ID, res.Err)
		if !req.opts.optimistic {
			return
		}
		if !req.opts.rollbackOnError {
			s.ledger.Discard(cmd.ID, req.path)
			return
		}
		s.rollback(cmd.ID, req.path)
	case sched.Cancelled:
		s.states.Cancel(req.key, cmd.ID)
		if req.opts.optimistic {
			s.rollback(cmd.ID, req.path)
		}
	}
}

func (s *Store) rollback(id string, p xpath.Path) {
	t, ok := s.ledger.Rollback(id, p)
	if !ok {
		return
	}
	s.setTree(t)
}

// Cancel cancels the submitted or batched command with the given id. It
// reports false for unknown or settled commands and after Close.
func (s *Store) Cancel(id string) bool {
	var ok bool
	s.do(func() { ok = s.sched.Cancel(id) || s.batches.Cancel(id) })
	return ok
}

// CancelByPath cancels every pending or executing command whose path is
// exactly path and returns how many were cancelled.
func (s *Store) CancelByPath(path string) (int, error) {
	p, err := xpath.Parse(path)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.do(func() {
		n = len(s.sched.CancelByPath(p)) + len(s.batches.CancelByPath(p))
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CancelAll cancels every pending and executing command, batched ones
// included.
func (s *Store) CancelAll() int {
	var n int
	s.do(func() { n = len(s.sched.CancelAll()) + len(s.batches.CancelAll()) })
	return n
}

// ReadAsyncState returns the async state tracked at path.
func (s *Store) ReadAsyncState(path string) (asyncstate.State, bool, error) {
	key, err := xpath.Canonical(path)
	if err != nil {
		return asyncstate.State{}, false, err
	}
	var (
		st asyncstate.State
		ok bool
	)
	if err := s.do(func() { st, ok = s.states.Get(key) }); err != nil {
		return asyncstate.State{}, false, err
	}
	return st, ok, nil
}

// Stats is a point in time view of a store.
type Stats struct {
	sched.Stats
	// Optimistic counts the optimistic writes awaiting their command.
	Optimistic int
	// Tracked counts the paths with async state.
	Tracked int
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.do(func() {
		st = Stats{
			Stats:      s.sched.Stats(),
			Optimistic: s.ledger.Len(),
			Tracked:    len(s.states.Paths()),
		}
	})
	return st, err
}

// Close cancels all commands and running batches, settling their handles,
// and stops the loop. Later calls return ErrClosed.
func (s *Store) Close() error {
	var n int
	err := s.do(func() {
		s.closed = true
		n = len(s.sched.CancelAll()) + len(s.batches.Close())
	})
	if err != nil {
		return err
	}
	s.loop.Close()
	s.log.Debug("closed", "cancelled", n)
	return nil
}
