package sched

import (
	"sync"

	"github.com/petermattis/goid"
)

// Loop runs functions one at a time on a dedicated goroutine. It is the
// single writer that owns a Scheduler and whatever state its hooks touch.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	gid    int64
}

func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	started := make(chan struct{})
	go l.run(started)
	<-started
	return l
}

func (l *Loop) run(started chan struct{}) {
	l.gid = goid.Get()
	close(started)
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// Post queues fn without waiting. It reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

// Do runs fn on the loop and waits for it. Called from the loop goroutine
// itself, fn runs inline.
func (l *Loop) Do(fn func()) error {
	if l.OnLoop() {
		fn()
		return nil
	}
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// OnLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) OnLoop() bool {
	return goid.Get() == l.gid
}

// Close stops accepting work, runs what was already queued and waits for
// the loop goroutine to exit. Calling Close from the loop does not wait.
func (l *Loop) Close() {
	l.mu.Lock()
	already := l.closed
	l.closed = true
	l.mu.Unlock()
	if !already {
		l.signal()
	}
	if l.OnLoop() {
		return
	}
	<-l.done
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
