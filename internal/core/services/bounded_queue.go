package services

import "sync"

// boundedQueue is a fixed-capacity FIFO that evicts its oldest element when a
// push would overflow it. Push and Pop never block.
type boundedQueue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	size    int
	dropped uint64
	ready   chan struct{}
}

func newBoundedQueue[T any](capacity int) *boundedQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &boundedQueue[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push enqueues v. It returns the evicted element and true when the queue was full.
func (q *boundedQueue[T]) Push(v T) (T, bool) {
	q.mu.Lock()
	var evicted T
	overflow := q.size == len(q.items)
	if overflow {
		evicted = q.items[q.head]
		q.items[q.head] = v
		q.head = (q.head + 1) % len(q.items)
		q.dropped++
	} else {
		q.items[(q.head+q.size)%len(q.items)] = v
		q.size++
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted, overflow
}

func (q *boundedQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

func (q *boundedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *boundedQueue[T]) Cap() int {
	return len(q.items)
}

func (q *boundedQueue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all queued elements and returns how many were discarded.
func (q *boundedQueue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head = 0
	q.size = 0
	return n
}

// Ready is signalled after a push. Consumers that want to wait for data select
// on it and then Pop until empty.
func (q *boundedQueue[T]) Ready() <-chan struct{} {
	return q.ready
}
