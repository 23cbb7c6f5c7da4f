package sched

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/signadot/pathstore/xpath"
)

type Kind int

const (
	Fetch Kind = iota
	Mutate
)

func (k Kind) String() string {
	switch k {
	case Fetch:
		return "fetch"
	case Mutate:
		return "mutate"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Priority orders pending commands. High is meant for mutations, Normal is
// the default for fetches and Low is for prefetching.
type Priority int

const (
	Low    Priority = -1
	Normal Priority = 0
	High   Priority = 1
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority parses "low", "normal" or "high".
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return Low, nil
	case "normal", "":
		return Normal, nil
	case "high":
		return High, nil
	}
	return Normal, fmt.Errorf("unknown priority %q", s)
}

// DefaultPriority is High for mutations and Normal for fetches.
func DefaultPriority(k Kind) Priority {
	if k == Mutate {
		return High
	}
	return Normal
}

// Operation is the caller supplied asynchronous work behind a command. It
// should return promptly once ctx is done.
type Operation func(ctx context.Context) (any, error)

// Retry configures how many times a failed operation is retried and the base
// delay of the exponential backoff between attempts.
type Retry struct {
	Count int
	Delay time.Duration
}

// MaxRetryCount bounds Retry.Count.
const MaxRetryCount = 32

// Backoff returns the wait before the retry that follows the given zero
// based attempt. It saturates at the largest Duration instead of
// overflowing.
func (r Retry) Backoff(attempt int) time.Duration {
	d := r.Delay
	if d <= 0 {
		return 0
	}
	for range max(attempt, 0) {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// Clamped returns r with Count in [0, MaxRetryCount] and a non negative
// Delay.
func (r Retry) Clamped() Retry {
	r.Count = min(max(r.Count, 0), MaxRetryCount)
	r.Delay = max(r.Delay, 0)
	return r
}

// Command is a unit of scheduled work. Enqueue fills in ID and SubmittedAt
// when they are zero; the command must not be modified afterwards.
type Command struct {
	ID          string
	Path        xpath.Path
	Kind        Kind
	Priority    Priority
	SubmittedAt time.Time
	Op          Operation
	Retry       Retry

	seq uint64
}

// NewID returns a fresh command id.
func NewID() string {
	return uuid.NewString()
}

// before reports whether c should run before o within the same priority.
func (c *Command) before(o *Command) bool {
	if !c.SubmittedAt.Equal(o.SubmittedAt) {
		return c.SubmittedAt.Before(o.SubmittedAt)
	}
	return c.seq < o.seq
}

// Status is where a command is in its lifecycle as seen by the scheduler.
type Status int

const (
	Unknown Status = iota
	Pending
	Executing
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Executing:
		return "executing"
	}
	return "unknown"
}

// Outcome is how a command settled.
type Outcome int

const (
	Completed Outcome = iota
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is what a settled command produced.
type Result struct {
	Outcome  Outcome
	Value    any
	Err      error
	Attempts int
	At       time.Time
}
