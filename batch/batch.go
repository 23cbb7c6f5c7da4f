// Package batch runs a group of commands on a private scheduler and
// collects their results, either best-effort or failing fast on the first
// error.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"

	"github.com/signadot/pathstore/debug"
	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/xpath"
)

// ErrOnLoop is returned when RunAll is called from the loop goroutine,
// where waiting for the batch would deadlock.
var ErrOnLoop = errors.New("batch: RunAll called from the owner loop")

// ErrClosed is returned by RunAll once the coordinator is closed.
var ErrClosed = errors.New("batch: coordinator closed")

// Item is one command of a batch.
type Item struct {
	ID       string // optional, assigned when empty
	Path     xpath.Path
	Kind     sched.Kind
	Priority sched.Priority
	Retry    sched.Retry
	Op       sched.Operation
}

type Options struct {
	// Concurrency bounds the items executing at once, at least 1.
	Concurrency int
	// FailFast cancels the unsettled items on the first failure.
	FailFast bool
}

type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	if s == Success {
		return "success"
	}
	return "error"
}

// ItemResult is the settled state of one item. Cancelled items report
// Failure with an error matching sched.ErrCancelled.
type ItemResult struct {
	ID     string
	Path   xpath.Path
	Status Status
	Value  any
	Err    error
}

// Result lists item results in input order.
type Result struct {
	Items []ItemResult
}

// Failed returns the results with Failure status.
func (r *Result) Failed() []ItemResult {
	var res []ItemResult
	for _, it := range r.Items {
		if it.Status == Failure {
			res = append(res, it)
		}
	}
	return res
}

// Error is the error of a fail-fast batch: the first item failure.
type Error struct {
	Path xpath.Path
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch item %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sink observes the items of every batch. Its methods run on the owner
// loop.
type Sink interface {
	Enqueued(cmd *sched.Command)
	Settled(cmd *sched.Command, res *sched.Result)
}

type Config struct {
	Loop    *sched.Loop // required
	Sink    Sink        // optional
	Log     *slog.Logger
	Metrics *sched.Metrics
	Tracer  trace.Tracer
}

// Coordinator runs batches on the goroutine of its loop.
type Coordinator struct {
	loop    *sched.Loop
	sink    Sink
	log     *slog.Logger
	metrics *sched.Metrics
	tracer  trace.Tracer

	// owned by loop
	active []*run
	closed bool
}

func New(cfg *Config) *Coordinator {
	if cfg.Loop == nil {
		panic("batch: Config.Loop is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		loop:    cfg.Loop,
		sink:    cfg.Sink,
		log:     log.With("component", "batch"),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
}

// run is the loop-owned state of one batch.
type run struct {
	c       *Coordinator
	opts    Options
	sink    Sink
	s       *sched.Scheduler
	items   []*sched.Command
	settled map[string]bool
	first   *Error
}

func (r *run) onSettled(cmd *sched.Command, res *sched.Result) {
	r.settled[cmd.ID] = true
	if len(r.settled) == len(r.items) {
		r.c.remove(r)
	}
	if r.sink != nil {
		r.sink.Settled(cmd, res)
	}
	if !r.opts.FailFast || res.Outcome != sched.Failed || r.first != nil {
		return
	}
	r.first = &Error{Path: cmd.Path, Err: res.Err}
	if debug.Batch() {
		debug.Logf("batch: %s failed, cancelling unsettled items\n", cmd.Path)
	}
	for _, c := range r.items {
		if !r.settled[c.ID] {
			r.s.CancelByPath(c.Path)
		}
	}
}

// RunAll runs items with opts and waits for all of them to settle. With
// FailFast, the returned error is an *Error wrapping the first failure and
// the partial results remain in Result. Without it the error is nil unless
// ctx ends first, in which case the unsettled items are cancelled and
// ctx.Err() is returned alongside the results.
func (c *Coordinator) RunAll(ctx context.Context, items []Item, opts Options) (*Result, error) {
	if c.loop.OnLoop() {
		return nil, ErrOnLoop
	}
	if len(items) == 0 {
		return &Result{}, nil
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	r := &run{
		c:       c,
		opts:    opts,
		sink:    c.sink,
		settled: map[string]bool{},
	}
	r.s = sched.New(&sched.Config{
		MaxConcurrent: opts.Concurrency,
		Poster:        c.loop,
		Hooks:         sched.Hooks{Settled: r.onSettled},
		Log:           c.log,
		Metrics:       c.metrics,
		Tracer:        c.tracer,
	})
	handles := make([]*sched.Handle, len(items))
	closed := false
	err := c.loop.Do(func() {
		if c.closed {
			closed = true
			return
		}
		c.active = append(c.active, r)
		for i := range items {
			cmd := &sched.Command{
				ID:       items[i].ID,
				Path:     items[i].Path,
				Kind:     items[i].Kind,
				Priority: items[i].Priority,
				Retry:    items[i].Retry,
				Op:       items[i].Op,
			}
			if cmd.ID == "" {
				cmd.ID = sched.NewID()
			}
			r.items = append(r.items, cmd)
		}
		// every item is announced before any can settle.
		if r.sink != nil {
			for _, cmd := range r.items {
				r.sink.Enqueued(cmd)
			}
		}
		for i, cmd := range r.items {
			handles[i] = r.s.Enqueue(cmd)
		}
	})
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrClosed
	}
	c.log.Debug("batch started", "items", len(items), "concurrency", opts.Concurrency, "failFast", opts.FailFast)

	var ctxErr error
	for _, h := range handles {
		select {
		case <-h.Done():
			continue
		case <-ctx.Done():
		}
		ctxErr = ctx.Err()
		// a closed loop has already cancelled the run
		if err := c.loop.Do(func() { r.s.CancelAll() }); err != nil && !errors.Is(err, sched.ErrClosed) {
			return nil, err
		}
		break
	}
	for _, h := range handles {
		<-h.Done()
	}
	// items rejected at Enqueue settle without the hook
	c.loop.Do(func() { c.remove(r) })

	res := &Result{Items: make([]ItemResult, len(handles))}
	for i, h := range handles {
		sr := h.Result()
		ir := ItemResult{ID: h.ID(), Path: h.Command().Path, Value: sr.Value, Err: sr.Err}
		if sr.Outcome != sched.Completed {
			ir.Status = Failure
		}
		res.Items[i] = ir
	}
	c.log.Debug("batch done", "items", len(items), "failed", len(res.Failed()))
	switch {
	case ctxErr != nil:
		return res, ctxErr
	case r.first != nil:
		return res, r.first
	}
	return res, nil
}

func (c *Coordinator) remove(r *run) {
	c.active = slices.DeleteFunc(c.active, func(a *run) bool { return a == r })
}

// Cancel cancels the item with the given id in whichever running batch
// holds it. Loop only.
func (c *Coordinator) Cancel(id string) bool {
	for _, r := range slices.Clone(c.active) {
		if r.s.Cancel(id) {
			return true
		}
	}
	return false
}

// CancelByPath cancels the pending and executing items at p across all
// running batches and returns their ids. Loop only.
func (c *Coordinator) CancelByPath(p xpath.Path) []string {
	var ids []string
	for _, r := range slices.Clone(c.active) {
		ids = append(ids, r.s.CancelByPath(p)...)
	}
	return ids
}

// CancelAll cancels every unsettled item of every running batch. Loop only.
func (c *Coordinator) CancelAll() []string {
	var ids []string
	for _, r := range slices.Clone(c.active) {
		ids = append(ids, r.s.CancelAll()...)
	}
	return ids
}

// Close cancels the running batches and makes later RunAll calls return
// ErrClosed. Loop only.
func (c *Coordinator) Close() []string {
	c.closed = true
	return c.CancelAll()
}

// Active returns the number of batches still running. Loop only.
func (c *Coordinator) Active() int {
	return len(c.active)
}

// Parallel runs all items at once.
func (c *Coordinator) Parallel(ctx context.Context, items []Item, failFast bool) (*Result, error) {
	return c.RunAll(ctx, items, Options{Concurrency: len(items), FailFast: failFast})
}

// Sequential runs items one at a time in order.
func (c *Coordinator) Sequential(ctx context.Context, items []Item, failFast bool) (*Result, error) {
	return c.RunAll(ctx, items, Options{Concurrency: 1, FailFast: failFast})
}
