// Package history keeps a navigation history of paths with an explicit
// current position.
package history

import "github.com/signadot/pathstore/xpath"

// History is a back stack, a current path and a forward stack. The zero
// value starts at the root.
type History struct {
	back    []xpath.Path
	current xpath.Path
	forward []xpath.Path
}

func New(start xpath.Path) *History {
	return &History{current: start}
}

func (h *History) Current() xpath.Path {
	return h.current
}

// Push moves to p, saving the current path on the back stack and clearing
// the forward stack. Pushing the current path is a no-op.
func (h *History) Push(p xpath.Path) {
	if p.Equal(h.current) {
		return
	}
	h.back = append(h.back, h.current)
	h.current = p
	h.forward = nil
}

// Replace changes the current path without recording it.
func (h *History) Replace(p xpath.Path) {
	h.current = p
}

func (h *History) CanBack() bool {
	return len(h.back) > 0
}

func (h *History) CanForward() bool {
	return len(h.forward) > 0
}

// Back moves to the previous path. It reports false, leaving the position
// unchanged, when there is none.
func (h *History) Back() (xpath.Path, bool) {
	n := len(h.back)
	if n == 0 {
		return h.current, false
	}
	h.forward = append(h.forward, h.current)
	h.current = h.back[n-1]
	h.back = h.back[:n-1]
	return h.current, true
}

// Forward undoes a Back. It reports false, leaving the position unchanged,
// when there is nothing to go forward to.
func (h *History) Forward() (xpath.Path, bool) {
	n := len(h.forward)
	if n == 0 {
		return h.current, false
	}
	h.back = append(h.back, h.current)
	h.current = h.forward[n-1]
	h.forward = h.forward[:n-1]
	return h.current, true
}

// Len is the number of recorded positions, the current one included.
func (h *History) Len() int {
	return len(h.back) + 1 + len(h.forward)
}
