package store

import (
	"time"

	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/tree"
)

// SubmitOption configures a submitted command.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority        *sched.Priority
	optimistic      bool
	value           any
	rollbackOnError bool
	retry           sched.Retry
	writeOp         tree.Op
	discard         bool
}

func (s *Store) submitOptions(kind sched.Kind, opts []SubmitOption) *submitOptions {
	o := &submitOptions{
		rollbackOnError: s.cfg.RollbackOnError,
		retry:           sched.Retry{Count: s.cfg.RetryCount, Delay: s.cfg.RetryDelay},
		writeOp:         tree.Replace,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.priority == nil {
		p := sched.DefaultPriority(kind)
		o.priority = &p
	}
	return o
}

// WithPriority overrides the default priority: high for mutations, normal
// for fetches.
func WithPriority(p sched.Priority) SubmitOption {
	return func(o *submitOptions) {
		o.priority = &p
	}
}

// WithOptimistic writes v at the command's path while it runs.
func WithOptimistic(v any) SubmitOption {
	return func(o *submitOptions) {
		o.optimistic = true
		o.value = v
	}
}

// WithRollbackOnError sets whether a failed operation rolls back its
// optimistic write. Cancellation always rolls back.
func WithRollbackOnError(rollback bool) SubmitOption {
	return func(o *submitOptions) {
		o.rollbackOnError = rollback
	}
}

// WithRetry sets the retry count and the base backoff delay. The count is
// clamped to [0, sched.MaxRetryCount], the delay to non negative values.
func WithRetry(count int, delay time.Duration) SubmitOption {
	return func(o *submitOptions) {
		o.retry = sched.Retry{Count: count, Delay: delay}.Clamped()
	}
}

// WithWriteOp sets how a successful result is written at the path. It has
// no effect on optimistic commands, whose result replaces the proposed
// value.
func WithWriteOp(op tree.Op) SubmitOption {
	return func(o *submitOptions) {
		o.writeOp = op
	}
}

// DiscardResult leaves the tree alone on success. An optimistic value is
// kept as is.
func DiscardResult() SubmitOption {
	return func(o *submitOptions) {
		o.discard = true
	}
}
