package store

import (
	"context"
	"errors"

	"github.com/signadot/pathstore/batch"
	"github.com/signadot/pathstore/sched"
)

// Request is one command of a batch.
type Request struct {
	Path    string
	Kind    sched.Kind
	Op      sched.Operation
	Options []SubmitOption
}

// RunBatch runs reqs on a private scheduler bounded by opts.Concurrency.
// The commands update async state and the tree like submitted ones. An
// invalid path fails the whole batch before anything runs.
func (s *Store) RunBatch(ctx context.Context, reqs []Request, opts batch.Options) (*batch.Result, error) {
	items := make([]batch.Item, len(reqs))
	tracked := make(map[string]*request, len(reqs))
	for i, r := range reqs {
		p, err := s.writePath(r.Path)
		if err != nil {
			return nil, err
		}
		o := s.submitOptions(r.Kind, r.Options)
		cmd := s.command(p, r.Kind, r.Op, o)
		items[i] = batch.Item{
			ID:       cmd.ID,
			Path:     p,
			Kind:     r.Kind,
			Priority: cmd.Priority,
			Retry:    cmd.Retry,
			Op:       r.Op,
		}
		tracked[cmd.ID] = &request{path: p, key: p.String(), opts: o}
	}
	closed := false
	err := s.do(func() {
		if s.closed {
			closed = true
			return
		}
		for id, r := range tracked {
			s.requests[id] = r
		}
	})
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrClosed
	}
	res, err := s.batches.RunAll(ctx, items, opts)
	if res == nil && err != nil {
		s.do(func() {
			for id := range tracked {
				delete(s.requests, id)
			}
		})
		if errors.Is(err, batch.ErrClosed) || errors.Is(err, sched.ErrClosed) {
			return nil, ErrClosed
		}
	}
	return res, err
}

// Parallel runs all reqs at once.
func (s *Store) Parallel(ctx context.Context, reqs []Request, failFast bool) (*batch.Result, error) {
	return s.RunBatch(ctx, reqs, batch.Options{Concurrency: len(reqs), FailFast: failFast})
}

// Sequential runs reqs one at a time.
func (s *Store) Sequential(ctx context.Context, reqs []Request, failFast bool) (*batch.Result, error) {
	return s.RunBatch(ctx, reqs, batch.Options{Concurrency: 1, FailFast: failFast})
}

// batchSink feeds batch commands through the store's lifecycle.
type batchSink struct {
	s *Store
}

func (b batchSink) Enqueued(cmd *sched.Command) {
	b.s.begin(cmd)
}

func (b batchSink) Settled(cmd *sched.Command, res *sched.Result) {
	b.s.settled(cmd, res)
}
