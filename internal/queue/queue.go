// Package queue provides the FIFO used for batched DB writes and for the bounded per-occupant
// door memory.
package queue

import (
	"slices"
	"sync"
)

// Queue is a mutex-guarded FIFO. With a limit it keeps only the newest limit items.
type Queue[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // buf[:head] has been popped
	limit int
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit items, clamped to at least one.
func NewBounded[T any](limit int) *Queue[T] {
	limit = max(limit, 1)
	return &Queue[T]{buf: make([]T, 0, limit), limit: limit}
}

func (q *Queue[T]) live() []T { return q.buf[q.head:] }

// compact drops popped items once they outweigh the live ones. Call with q.mu held.
func (q *Queue[T]) compact() {
	if q.head == 0 || q.head < len(q.buf)-q.head {
		return
	}
	n := copy(q.buf, q.buf[q.head:])
	clear(q.buf[n:])
	q.buf = q.buf[:n]
	q.head = 0
}

// Push appends items and returns how many of the oldest were evicted to respect the limit.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.buf = append(q.buf, items...)
	over := len(q.live()) - q.limit
	if q.limit == 0 || over <= 0 {
		return 0
	}
	q.head += over
	q.compact()
	return over
}

// Pop removes the oldest item, or returns the zero value when empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.live()) == 0 {
		return zero
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head++
	q.compact()
	return item
}

// Last returns the newest item.
func (q *Queue[T]) Last() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	live := q.live()
	if len(live) == 0 {
		var zero T
		return zero, false
	}
	return live[len(live)-1], true
}

// Snapshot copies the items, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.live())
}

func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live())
}

func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.buf)
	q.buf = q.buf[:0]
	q.head = 0
}

// GetAndEmpty hands the pending items to the caller and resets the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.live()
	q.buf = make([]T, 0, q.limit)
	q.head = 0
	return out
}
