package sched

import "container/list"

// queue holds pending commands in one FIFO bucket per priority, with a
// lookup table for O(1) removal by id.
type queue struct {
	buckets [3]*list.List // indexed by priority - Low
	lookup  map[string]*list.Element
}

type queued struct {
	cmd    *Command
	handle *Handle
}

func newQueue() *queue {
	q := &queue{lookup: map[string]*list.Element{}}
	for i := range q.buckets {
		q.buckets[i] = list.New()
	}
	return q
}

func bucketOf(p Priority) int {
	switch {
	case p <= Low:
		return 0
	case p >= High:
		return 2
	}
	return 1
}

// push inserts keeping each bucket ordered by submission. Submissions
// normally arrive in order so the scan from the back stops immediately.
func (q *queue) push(cmd *Command, h *Handle) {
	b := q.buckets[bucketOf(cmd.Priority)]
	item := &queued{cmd: cmd, handle: h}
	for e := b.Back(); e != nil; e = e.Prev() {
		if !cmd.before(e.Value.(*queued).cmd) {
			q.lookup[cmd.ID] = b.InsertAfter(item, e)
			return
		}
	}
	q.lookup[cmd.ID] = b.PushFront(item)
}

// pop removes and returns the highest priority, earliest submitted command.
func (q *queue) pop() (*queued, bool) {
	for i := len(q.buckets) - 1; i >= 0; i-- {
		b := q.buckets[i]
		if e := b.Front(); e != nil {
			b.Remove(e)
			item := e.Value.(*queued)
			delete(q.lookup, item.cmd.ID)
			return item, true
		}
	}
	return nil, false
}

func (q *queue) remove(id string) (*queued, bool) {
	e, ok := q.lookup[id]
	if !ok {
		return nil, false
	}
	delete(q.lookup, id)
	item := e.Value.(*queued)
	q.buckets[bucketOf(item.cmd.Priority)].Remove(e)
	return item, true
}

func (q *queue) has(id string) bool {
	_, ok := q.lookup[id]
	return ok
}

func (q *queue) len() int {
	return len(q.lookup)
}

// each visits pending commands in admission order.
func (q *queue) each(f func(*queued)) {
	for i := len(q.buckets) - 1; i >= 0; i-- {
		for e := q.buckets[i].Front(); e != nil; e = e.Next() {
			f(e.Value.(*queued))
		}
	}
}
