package store

import (
	"sync"

	"github.com/signadot/pathstore/asyncstate"
	"github.com/signadot/pathstore/history"
	"github.com/signadot/pathstore/sched"
	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

// Scope resolves relative paths against a current base path, with a
// navigation history of base paths.
type Scope struct {
	s *Store

	mu   sync.Mutex
	hist *history.History
}

// Scope returns a scope based at base.
func (s *Store) Scope(base string) (*Scope, error) {
	p, err := xpath.Parse(base)
	if err != nil {
		return nil, err
	}
	return &Scope{s: s, hist: history.New(p)}, nil
}

// Base returns the current base path.
func (sc *Scope) Base() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.hist.Current().String()
}

// Resolve combines rel with the base path. Absolute paths are returned in
// canonical form and ".." stops at the root.
func (sc *Scope) Resolve(rel string) (string, error) {
	sc.mu.Lock()
	base := sc.hist.Current()
	sc.mu.Unlock()
	p, err := base.Resolve(rel)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// Navigate moves the base to rel, recording the move.
func (sc *Scope) Navigate(rel string) (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	p, err := sc.hist.Current().Resolve(rel)
	if err != nil {
		return "", err
	}
	sc.hist.Push(p)
	return p.String(), nil
}

// Back returns to the previous base. It reports false when there is none.
func (sc *Scope) Back() (string, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	p, ok := sc.hist.Back()
	return p.String(), ok
}

// Forward undoes a Back. It reports false when there is nothing to redo.
func (sc *Scope) Forward() (string, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	p, ok := sc.hist.Forward()
	return p.String(), ok
}

func (sc *Scope) Get(rel string) (any, bool, error) {
	path, err := sc.Resolve(rel)
	if err != nil {
		return nil, false, err
	}
	return sc.s.GetAt(path)
}

func (sc *Scope) Set(rel string, value any, op tree.Op) error {
	path, err := sc.Resolve(rel)
	if err != nil {
		return err
	}
	return sc.s.SetAt(path, value, op)
}

func (sc *Scope) Submit(rel string, kind sched.Kind, op sched.Operation, opts ...SubmitOption) (*sched.Handle, error) {
	path, err := sc.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return sc.s.Submit(path, kind, op, opts...)
}

func (sc *Scope) State(rel string) (asyncstate.State, bool, error) {
	path, err := sc.Resolve(rel)
	if err != nil {
		return asyncstate.State{}, false, err
	}
	return sc.s.ReadAsyncState(path)
}
