package sched

import (
	"context"
	"sync"
)

// Handle is the caller's view of an enqueued command: a future for its
// result.
type Handle struct {
	cmd  *Command
	done chan struct{}

	mu  sync.Mutex
	res *Result
}

func newHandle(cmd *Command) *Handle {
	return &Handle{cmd: cmd, done: make(chan struct{})}
}

func (h *Handle) ID() string {
	return h.cmd.ID
}

func (h *Handle) Command() *Command {
	return h.cmd
}

// Done is closed once the command settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the command settles or ctx is done. A cancelled command
// yields ErrCancelled. Giving up on ctx does not cancel the command.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := h.Result()
	return res.Value, res.Err
}

// Result returns the settled result, or nil if the command has not settled.
func (h *Handle) Result() *Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res
}

// settle records res once; later calls are ignored.
func (h *Handle) settle(res *Result) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.res != nil {
		return false
	}
	h.res = res
	close(h.done)
	return true
}
