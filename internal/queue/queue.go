// Package queue holds pending flight log rows between recorder flushes.
package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO. With a positive capacity it keeps only the
// newest items and counts what it had to drop.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue that holds at most capacity items.
// A capacity <= 0 means unbounded.
func NewBounded[T any](capacity int) *Queue[T] {
	return &Queue[T]{capacity: capacity}
}

// Push appends items, evicting the oldest ones past capacity.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.capacity > 0 && len(q.items) > q.capacity {
		over := len(q.items) - q.capacity
		q.dropped += uint64(over)
		q.items = append(q.items[:0:0], q.items[over:]...)
	}
}

// Pop removes and returns the first item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Dropped returns how many items were evicted over capacity.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain returns up to max items in FIFO order and removes them.
// max <= 0 drains everything.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}

// Requeue puts items back at the head, e.g. after a failed flush.
// Capacity still applies; the newest items survive.
func (q *Queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	merged = append(merged, q.items...)
	if q.capacity > 0 && len(merged) > q.capacity {
		over := len(merged) - q.capacity
		q.dropped += uint64(over)
		merged = merged[over:]
	}
	q.items = merged
}
