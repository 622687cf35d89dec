// Package queue holds requests waiting for an elevator assignment.
package queue

import (
	"errors"
	"sync"

	"github.com/kilianp07/liftmpc/core/model"
)

// ErrDuplicate is returned when a request ID is already queued.
var ErrDuplicate = errors.New("request already pending")

// Pending is an insertion-ordered set of requests. Each pushed request gets a
// monotonically increasing sequence number used to break arrival-time ties.
type Pending struct {
	mu    sync.Mutex
	seq   uint64
	items []*model.Request
	index map[string]*model.Request
}

// New returns an empty queue.
func New() *Pending {
	return &Pending{index: make(map[string]*model.Request)}
}

// Push enqueues r, marking it pending.
func (q *Pending) Push(r *model.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[r.ID]; ok {
		return ErrDuplicate
	}
	q.seq++
	r.Seq = q.seq
	r.Status = model.StatusPending
	q.items = append(q.items, r)
	q.index[r.ID] = r
	return nil
}

// Remove drops the request with id and reports whether it was queued.
func (q *Pending) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[id]; !ok {
		return false
	}
	delete(q.index, id)
	for i, r := range q.items {
		if r.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the queued request with id.
func (q *Pending) Get(id string) (*model.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.index[id]
	return r, ok
}

// List returns the queued requests in insertion order.
func (q *Pending) List() []*model.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.Request(nil), q.items...)
}

// Len returns the number of queued requests.
func (q *Pending) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
