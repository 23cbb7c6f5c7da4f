package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/signadot/pathstore/batch"
	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/store"
	"github.com/signadot/pathstore/tree"
)

// AssertionError reports an assert step that evaluated to false.
type AssertionError struct {
	Step int
	Expr string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d: assertion failed: %s", e.Step, e.Expr)
}

// StepError wraps the error of a step that could not be carried out.
type StepError struct {
	Step int
	Name string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes scenarios against a store.
type Runner struct {
	Store *store.Store
	Log   *slog.Logger
	// Timeout bounds each wait and batch step; zero means 10s.
	Timeout time.Duration

	handles map[string]*sched.Handle
	gates   map[string]chan struct{}
	calls   map[string]*atomic.Int32
	batches map[string]*batch.ItemResult
}

// Run creates a store from the scenario, runs it and closes the store.
func Run(ctx context.Context, sc *Scenario, spec *store.Spec) error {
	if spec == nil {
		spec = &store.Spec{}
	}
	if spec.Config == nil {
		cfg, err := sc.StoreConfig()
		if err != nil {
			return err
		}
		spec.Config = cfg
	}
	if sc.Tree != nil {
		spec.Initial = sc.Tree
	}
	s, err := store.New(spec)
	if err != nil {
		return err
	}
	defer s.Close()
	r := &Runner{Store: s, Log: spec.Log}
	return r.Run(ctx, sc)
}

// Run executes the steps in order and stops at the first failure. Blocked
// operations still held at the end are released.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	r.handles = map[string]*sched.Handle{}
	r.gates = map[string]chan struct{}{}
	r.calls = map[string]*atomic.Int32{}
	r.batches = map[string]*batch.ItemResult{}
	if r.Log == nil {
		r.Log = slog.Default()
	}
	if r.Timeout == 0 {
		r.Timeout = 10 * time.Second
	}
	defer func() {
		for _, g := range r.gates {
			close(g)
		}
	}()
	log := r.Log.With("component", "scenario")
	for i := range sc.Steps {
		step := &sc.Steps[i]
		log.Debug("step", "index", i, "name", step.Name())
		if err := r.step(ctx, i, step); err != nil {
			var aErr *AssertionError
			if errors.As(err, &aErr) {
				return err
			}
			return &StepError{Step: i, Name: step.Name(), Err: err}
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, i int, s *Step) error {
	switch {
	case s.Submit != nil:
		return r.submit(s.Submit)
	case s.Wait != "":
		h, ok := r.handles[s.Wait]
		if !ok {
			return fmt.Errorf("no command %q", s.Wait)
		}
		ctx, cancel := context.WithTimeout(ctx, r.Timeout)
		defer cancel()
		select {
		case <-h.Done():
			return nil
		case <-ctx.Done():
			return fmt.Errorf("command %q did not settle: %w", s.Wait, ctx.Err())
		}
	case s.Release != "":
		g, ok := r.gates[s.Release]
		if !ok {
			return fmt.Errorf("no blocked command %q", s.Release)
		}
		delete(r.gates, s.Release)
		close(g)
		return nil
	case s.Cancel != "":
		h, ok := r.handles[s.Cancel]
		if !ok {
			return fmt.Errorf("no command %q", s.Cancel)
		}
		r.Store.Cancel(h.ID())
		return nil
	case s.CancelPath != "":
		_, err := r.Store.CancelByPath(s.CancelPath)
		return err
	case s.CancelAll:
		r.Store.CancelAll()
		return nil
	case s.Invalidate != nil:
		_, err := r.Store.Invalidate(s.Invalidate.Path, store.InvalidateOptions{
			IncludeChildren: s.Invalidate.Children,
			IncludeParents:  s.Invalidate.Parents,
			ClearData:       s.Invalidate.Clear,
		})
		return err
	case s.Set != nil:
		op, err := tree.ParseOp(s.Set.Op)
		if err != nil {
			return err
		}
		return r.Store.SetAt(s.Set.Path, s.Set.Value, op)
	case s.Patch != nil:
		data, err := json.Marshal(s.Patch)
		if err != nil {
			return err
		}
		return r.Store.ApplyJSONPatch(data)
	case s.Batch != nil:
		return r.batch(ctx, s.Batch)
	case s.Assert != "":
		return r.assert(i, s.Assert)
	case s.Sleep != "":
		d, _ := time.ParseDuration(s.Sleep)
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) submit(sub *Submit) error {
	if _, ok := r.handles[sub.ID]; ok {
		return fmt.Errorf("duplicate command id %q", sub.ID)
	}
	kind, opts, err := r.options(sub)
	if err != nil {
		return err
	}
	h, err := r.Store.Submit(sub.Path, kind, r.operation(sub), opts...)
	if err != nil {
		return err
	}
	r.handles[sub.ID] = h
	return nil
}

func (r *Runner) batch(ctx context.Context, b *Batch) error {
	reqs := make([]store.Request, len(b.Items))
	for i := range b.Items {
		sub := &b.Items[i]
		kind, opts, err := r.options(sub)
		if err != nil {
			return err
		}
		reqs[i] = store.Request{Path: sub.Path, Kind: kind, Op: r.operation(sub), Options: opts}
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	concurrency := len(reqs)
	if b.Mode == "sequential" {
		concurrency = 1
	}
	res, err := r.Store.RunBatch(ctx, reqs, batch.Options{Concurrency: concurrency, FailFast: b.FailFast})
	if res == nil {
		return err
	}
	var bErr *batch.Error
	if err != nil && !errors.As(err, &bErr) {
		return err
	}
	for i := range res.Items {
		if id := b.Items[i].ID; id != "" {
			r.batches[id] = &res.Items[i]
		}
	}
	return nil
}

func (r *Runner) options(sub *Submit) (sched.Kind, []store.SubmitOption, error) {
	kind := sched.Fetch
	switch sub.Kind {
	case "", "fetch":
	case "mutate":
		kind = sched.Mutate
	default:
		return 0, nil, fmt.Errorf("unknown kind %q", sub.Kind)
	}
	var opts []store.SubmitOption
	if sub.Priority != "" {
		p, err := sched.ParsePriority(sub.Priority)
		if err != nil {
			return 0, nil, err
		}
		opts = append(opts, store.WithPriority(p))
	}
	if sub.Op != "" {
		op, err := tree.ParseOp(sub.Op)
		if err != nil {
			return 0, nil, err
		}
		opts = append(opts, store.WithWriteOp(op))
	}
	if sub.Optimistic != nil {
		opts = append(opts, store.WithOptimistic(sub.Optimistic))
	}
	if sub.RollbackOnError != nil {
		opts = append(opts, store.WithRollbackOnError(*sub.RollbackOnError))
	}
	if sub.Retry != nil {
		var delay time.Duration
		if sub.RetryDelay != "" {
			d, err := time.ParseDuration(sub.RetryDelay)
			if err != nil {
				return 0, nil, err
			}
			delay = d
		}
		opts = append(opts, store.WithRetry(*sub.Retry, delay))
	}
	if sub.Discard {
		opts = append(opts, store.DiscardResult())
	}
	return kind, opts, nil
}

// operation simulates the work behind sub.
func (r *Runner) operation(sub *Submit) sched.Operation {
	calls := &atomic.Int32{}
	if sub.ID != "" {
		r.calls[sub.ID] = calls
	}
	var gate chan struct{}
	if sub.Block && sub.ID != "" {
		gate = make(chan struct{})
		r.gates[sub.ID] = gate
	}
	var delay time.Duration
	if sub.Delay != "" {
		delay, _ = time.ParseDuration(sub.Delay)
	}
	value, fail, failTimes := sub.Value, sub.Fail, sub.FailTimes
	return func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
		if fail != "" && (failTimes <= 0 || int(n) <= failTimes) {
			return nil, errors.New(fail)
		}
		return value, nil
	}
}

func (r *Runner) assert(i int, src string) error {
	snap, err := r.Store.Snapshot()
	if err != nil {
		return err
	}
	env := map[string]any{"tree": snap}
	prg, err := expr.Compile(src, append(r.exprOpts(), expr.Env(env), expr.AsBool())...)
	if err != nil {
		return err
	}
	ok, err := runBool(prg, env)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Step: i, Expr: src}
	}
	return nil
}

func runBool(prg *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(prg, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}
