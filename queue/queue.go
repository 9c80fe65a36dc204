// Package queue provides the bounded hand-off primitive used between
// pipeline stages. A Queue carries ownership: once Put succeeds the
// producer must not touch the item again.
package queue

import (
	"sync"
)

// Queue is a fixed-capacity FIFO for one producer and one consumer.
// A full queue blocks the producer rather than dropping or growing;
// backpressure propagates upstream through the blocked Put. The locking
// works for multiple producers and consumers too, the pipeline just
// doesn't need that.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    []T
	capacity int
	closed   bool
}

// New creates a Queue buffering at most capacity items. Capacity must be
// at least 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put appends item, blocking while the queue is full. It returns true
// once the item is buffered. If the queue is closed, or becomes closed
// while Put is blocked, it returns false and the item is not enqueued;
// the caller keeps ownership and should stop producing.
func (q *Queue[T]) Put(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return true
}

// Get removes and returns the oldest item, blocking while the queue is
// empty and not closed. Buffered items are still delivered after Close;
// ok is false only once the queue is closed and fully drained. That
// false is the consumer's sole end-of-stream signal.
func (q *Queue[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	// Avoid holding a reference in the backing array.
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	q.notFull.Signal()
	return item, true
}

// Close marks the queue finished and wakes every blocked Put and Get.
// Buffered items remain retrievable. Safe to call more than once and
// from any goroutine.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Drain closes the queue and returns any items still buffered, leaving
// the queue empty. Used at teardown so owned resources can be released.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()

	rest := q.items
	q.items = nil
	return rest
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
