package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signadot/pathstore/debug"
	"github.com/signadot/pathstore/xpath"
)

const tracerName = "github.com/signadot/pathstore/sched"

// Poster serializes functions onto the scheduler's owner goroutine.
type Poster interface {
	Post(fn func()) bool
}

// Hooks observe command lifecycle events. They run on the owner goroutine
// and may call back into the Scheduler.
type Hooks struct {
	// Admitted runs when a command moves from pending to executing.
	Admitted func(cmd *Command)
	// Settled runs exactly once per command, after it has left the queue and
	// before its Handle is resolved.
	Settled func(cmd *Command, res *Result)
}

// Config holds the settings of a Scheduler.
type Config struct {
	MaxConcurrent int    // at least 1; defaults to 1
	Poster        Poster // owner goroutine, required
	Hooks         Hooks

	Log     *slog.Logger     // optional
	Metrics *Metrics         // optional
	Tracer  trace.Tracer     // optional, defaults to the global provider
	Now     func() time.Time // optional
}

type run struct {
	cmd     *Command
	handle  *Handle
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// Scheduler admits, orders, runs and reaps commands. See the package
// documentation for its ownership rules.
type Scheduler struct {
	max     int
	poster  Poster
	hooks   Hooks
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time

	pending   *queue
	executing map[string]*run
	seq       uint64
	peak      int
}

func New(cfg *Config) *Scheduler {
	if cfg.Poster == nil {
		panic("sched: Config.Poster is required")
	}
	max := cfg.MaxConcurrent
	if max < 1 {
		max = 1
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		max:       max,
		poster:    cfg.Poster,
		hooks:     cfg.Hooks,
		log:       log.With("component", "sched"),
		metrics:   cfg.Metrics,
		tracer:    tracer,
		now:       now,
		pending:   newQueue(),
		executing: map[string]*run{},
	}
}

// Enqueue adds cmd to the pending queue and admits what the concurrency
// limit allows.
func (s *Scheduler) Enqueue(cmd *Command) *Handle {
	if cmd.ID == "" {
		cmd.ID = NewID()
	}
	if cmd.SubmittedAt.IsZero() {
		cmd.SubmittedAt = s.now()
	}
	s.seq++
	cmd.seq = s.seq
	h := newHandle(cmd)
	if s.Status(cmd.ID) != Unknown {
		h.settle(&Result{Outcome: Failed, Err: fmt.Errorf("%w: %s", ErrDuplicateID, cmd.ID), At: s.now()})
		return h
	}
	if debug.Sched() {
		debug.Logf("sched: enqueue %s %s %s (%s)\n", cmd.ID, cmd.Kind, cmd.Path, cmd.Priority)
	}
	s.pending.push(cmd, h)
	s.metrics.enqueued()
	s.pump()
	return h
}

// pump admits pending commands while there is room. It never blocks; the
// operations themselves run on their own goroutines.
func (s *Scheduler) pump() {
	for len(s.executing) < s.max {
		item, ok := s.pending.pop()
		if !ok {
			return
		}
		s.admit(item)
	}
}

func (s *Scheduler) admit(item *queued) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cmd:     item.cmd,
		handle:  item.handle,
		ctx:     ctx,
		cancel:  cancel,
		started: s.now(),
	}
	s.executing[item.cmd.ID] = r
	s.peak = max(s.peak, len(s.executing))
	s.metrics.admitted()
	if debug.Sched() {
		debug.Logf("sched: admit %s (%d/%d executing)\n", item.cmd.ID, len(s.executing), s.max)
	}
	if s.hooks.Admitted != nil {
		s.hooks.Admitted(item.cmd)
	}
	go func() {
		v, attempts, err := s.execute(r)
		if !s.poster.Post(func() { s.complete(r, v, attempts, err) }) {
			s.log.Debug("owner closed, dropping completion", "command", r.cmd.ID)
		}
	}()
}

// execute runs the operation, retrying failures with exponential backoff.
// It runs off the owner goroutine and touches no scheduler state.
func (s *Scheduler) execute(r *run) (any, int, error) {
	cmd := r.cmd
	ctx, span := s.tracer.Start(r.ctx, "sched."+cmd.Kind.String(), trace.WithAttributes(
		attribute.String("pathstore.command.id", cmd.ID),
		attribute.String("pathstore.path", cmd.Path.String()),
		attribute.String("pathstore.priority", cmd.Priority.String()),
	))
	defer span.End()

	for attempt := 0; ; attempt++ {
		v, err := call(ctx, cmd.Op)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return v, attempt + 1, nil
		}
		if r.ctx.Err() != nil || errors.Is(err, ErrCancelled) {
			return nil, attempt + 1, ErrCancelled
		}
		if attempt >= cmd.Retry.Count {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, attempt + 1, err
		}
		delay := cmd.Retry.Backoff(attempt)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt+1),
			attribute.String("error", err.Error()),
			attribute.Int64("delay_ms", delay.Milliseconds()),
		))
		s.metrics.retried(cmd.Kind)
		if debug.Sched() {
			debug.Logf("sched: retry %s attempt %d in %s: %v\n", cmd.ID, attempt+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return nil, attempt + 1, ErrCancelled
		case <-timer.C:
		}
	}
}

func call(ctx context.Context, op Operation) (v any, err error) {
	if op == nil {
		return nil, errors.New("nil operation")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// complete runs on the owner goroutine when an operation returns.
func (s *Scheduler) complete(r *run, v any, attempts int, err error) {
	cur, ok := s.executing[r.cmd.ID]
	if !ok || cur != r {
		s.log.Debug("dropping completion of command no longer executing",
			"command", r.cmd.ID, "path", r.cmd.Path.String())
		return
	}
	delete(s.executing, r.cmd.ID)
	r.cancel()
	s.metrics.finished(r.cmd.Kind, r.started)

	res := &Result{Value: v, Attempts: attempts, At: s.now()}
	switch {
	case err == nil:
		res.Outcome = Completed
	case errors.Is(err, ErrCancelled):
		res.Outcome = Cancelled
		res.Value = nil
		res.Err = ErrCancelled
	default:
		res.Outcome = Failed
		res.Value = nil
		res.Err = &OperationError{ID: r.cmd.ID, Path: r.cmd.Path, Attempts: attempts, Err: err}
	}
	s.settle(r.cmd, r.handle, res)
	s.pump()
}

func (s *Scheduler) settle(cmd *Command, h *Handle, res *Result) {
	s.metrics.outcome(cmd.Kind, res.Outcome)
	if res.Outcome == Failed {
		s.log.Debug("command failed", "command", cmd.ID, "path", cmd.Path.String(), "attempts", res.Attempts, "error", res.Err)
	}
	if debug.Sched() {
		debug.Logf("sched: settle %s %s\n", cmd.ID, res.Outcome)
	}
	if s.hooks.Settled != nil {
		s.hooks.Settled(cmd, res)
	}
	h.settle(res)
}

// Cancel cancels a pending or executing command. An executing command's
// context is cancelled and its eventual completion ignored. It reports
// false, doing nothing, for ids that are not pending or executing.
func (s *Scheduler) Cancel(id string) bool {
	if !s.cancel(id) {
		return false
	}
	s.pump()
	return true
}

func (s *Scheduler) cancel(id string) bool {
	if r, ok := s.executing[id]; ok {
		delete(s.executing, id)
		r.cancel()
		s.metrics.finished(r.cmd.Kind, r.started)
		s.settle(r.cmd, r.handle, &Result{Outcome: Cancelled, Err: ErrCancelled, At: s.now()})
		return true
	}
	if item, ok := s.pending.remove(id); ok {
		s.metrics.dequeued()
		s.settle(item.cmd, item.handle, &Result{Outcome: Cancelled, Err: ErrCancelled, At: s.now()})
		return true
	}
	return false
}

// CancelByPath cancels every pending or executing command whose path equals
// p and returns their ids, pending ones first.
func (s *Scheduler) CancelByPath(p xpath.Path) []string {
	return s.cancelWhere(func(c *Command) bool { return c.Path.Equal(p) })
}

// CancelAll cancels every pending and executing command.
func (s *Scheduler) CancelAll() []string {
	return s.cancelWhere(func(*Command) bool { return true })
}

func (s *Scheduler) cancelWhere(match func(*Command) bool) []string {
	var ids []string
	s.pending.each(func(item *queued) {
		if match(item.cmd) {
			ids = append(ids, item.cmd.ID)
		}
	})
	var running []*run
	for _, r := range s.executing {
		if match(r.cmd) {
			running = append(running, r)
		}
	}
	slices.SortFunc(running, func(a, b *run) int {
		return compare(a.cmd, b.cmd)
	})
	for _, r := range running {
		ids = append(ids, r.cmd.ID)
	}
	var cancelled []string
	for _, id := range ids {
		if s.cancel(id) {
			cancelled = append(cancelled, id)
		}
	}
	if len(cancelled) > 0 {
		s.pump()
	}
	return cancelled
}

// Status reports whether id is pending, executing or neither.
func (s *Scheduler) Status(id string) Status {
	if _, ok := s.executing[id]; ok {
		return Executing
	}
	if s.pending.has(id) {
		return Pending
	}
	return Unknown
}

// Stats is a point in time view of the queue.
type Stats struct {
	Pending       int
	Executing     int
	MaxConcurrent int
	// Peak is the largest executing set observed.
	Peak int
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Pending:       s.pending.len(),
		Executing:     len(s.executing),
		MaxConcurrent: s.max,
		Peak:          s.peak,
	}
}

// Executing returns the executing commands in submission order.
func (s *Scheduler) Executing() []*Command {
	res := make([]*Command, 0, len(s.executing))
	for _, r := range s.executing {
		res = append(res, r.cmd)
	}
	slices.SortFunc(res, compare)
	return res
}

func compare(a, b *Command) int {
	switch {
	case a.before(b):
		return -1
	case b.before(a):
		return 1
	}
	return 0
}
