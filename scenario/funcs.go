package scenario

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/signadot/pathstore/sched"
)

// exprOpts are the functions available to assertions:
//
//	at(path)        value at path, nil when absent
//	exists(path)    whether path exists
//	state(path)     {status, error, requestId} of path, status "none" when untracked
//	status(id)      "pending", "completed", "failed" or "cancelled"
//	result(id)      value a command settled with
//	errmsg(id)      error message a command settled with, "" if none
//	calls(id)       times the operation of a command ran
//	stats()         {pending, executing, peak, optimistic, tracked}
func (r *Runner) exprOpts() []expr.Option {
	return []expr.Option{
		expr.Function("at", func(params ...any) (any, error) {
			v, _, err := r.Store.GetAt(params[0].(string))
			return v, err
		},
			new(func(string) any)),
		expr.Function("exists", func(params ...any) (any, error) {
			_, ok, err := r.Store.GetAt(params[0].(string))
			return ok, err
		},
			new(func(string) bool)),
		expr.Function("state", func(params ...any) (any, error) {
			st, ok, err := r.Store.ReadAsyncState(params[0].(string))
			if err != nil {
				return nil, err
			}
			res := map[string]any{"status": "none", "error": "", "requestId": ""}
			if !ok {
				return res, nil
			}
			res["status"] = st.Status.String()
			res["requestId"] = st.RequestID
			if st.Err != nil {
				res["error"] = st.Err.Error()
			}
			return res, nil
		},
			new(func(string) map[string]any)),
		expr.Function("status", func(params ...any) (any, error) {
			res, err := r.outcome(params[0].(string))
			if err != nil || res == nil {
				return "pending", err
			}
			return res.Outcome.String(), nil
		},
			new(func(string) string)),
		expr.Function("result", func(params ...any) (any, error) {
			res, err := r.outcome(params[0].(string))
			if err != nil || res == nil {
				return nil, err
			}
			return res.Value, nil
		},
			new(func(string) any)),
		expr.Function("errmsg", func(params ...any) (any, error) {
			res, err := r.outcome(params[0].(string))
			if err != nil || res == nil || res.Err == nil {
				return "", err
			}
			return res.Err.Error(), nil
		},
			new(func(string) string)),
		expr.Function("calls", func(params ...any) (any, error) {
			c, ok := r.calls[params[0].(string)]
			if !ok {
				return 0, fmt.Errorf("no command %q", params[0])
			}
			return int(c.Load()), nil
		},
			new(func(string) int)),
		expr.Function("stats", func(params ...any) (any, error) {
			st, err := r.Store.Stats()
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"pending":    st.Pending,
				"executing":  st.Executing,
				"peak":       st.Peak,
				"optimistic": st.Optimistic,
				"tracked":    st.Tracked,
			}, nil
		},
			new(func() map[string]any)),
	}
}

// outcome returns how command id settled, nil while it has not.
func (r *Runner) outcome(id string) (*sched.Result, error) {
	if h, ok := r.handles[id]; ok {
		return h.Result(), nil
	}
	it, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("no command %q", id)
	}
	res := &sched.Result{Outcome: sched.Completed, Value: it.Value, Err: it.Err}
	switch {
	case isCancelled(it.Err):
		res.Outcome = sched.Cancelled
	case it.Err != nil:
		res.Outcome = sched.Failed
	}
	return res, nil
}

func isCancelled(err error) bool {
	return errors.Is(err, sched.ErrCancelled)
}
