// Package queue provides an unbounded, ordered, multiple-producer queue.
//
// Both directions of the render loop <-> bridge boundary use it: sends never
// block and never drop, and receivers observe items in send order.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Recv once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Unbounded is a FIFO queue with a non-blocking Send.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready holds at most one token and is signalled whenever items become
	// available or the queue closes.
	ready chan struct{}
}

// NewUnbounded creates an empty queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{ready: make(chan struct{}, 1)}
}

// Send appends item to the queue. It returns false if the queue is closed.
func (q *Unbounded[T]) Send(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return true
}

// TryRecv removes and returns the oldest item without blocking.
func (q *Unbounded[T]) TryRecv() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Recv blocks until an item is available, the queue is closed and empty, or
// ctx is done.
func (q *Unbounded[T]) Recv(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		item, ok := q.popLocked()
		closed := q.closed
		remaining := len(q.items) - q.head
		q.mu.Unlock()

		if ok {
			// Pass the token on so a sibling consumer sees the leftovers.
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}
		if closed {
			q.signal()
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Drain removes and returns every queued item in order.
func (q *Unbounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, q.items[q.head:])
	q.reset()
	return out
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops accepting new items. Items already queued can still be received.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close has been called.
func (q *Unbounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Unbounded[T]) popLocked() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.reset()
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		// Compact so a long-lived queue does not keep growing its backing array.
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, true
}

func (q *Unbounded[T]) reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

func (q *Unbounded[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
