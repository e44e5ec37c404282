// Package lifo implements a thread-safe last-in-first-out queue shared by
// several consumers.
package lifo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEmpty is returned by Get when nothing arrived before the timeout.
var ErrEmpty = errors.New("lifo: queue empty")

// Queue hands out the most recently added item first.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Put pushes an item without blocking.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	n := len(q.items)
	if n == 0 {
		return zero, false
	}
	item := q.items[n-1]
	q.items[n-1] = zero
	q.items = q.items[:n-1]
	if n > 1 {
		q.signal()
	}
	return item, true
}

// Get pops the newest item, waiting up to timeout. It returns ErrEmpty on
// timeout and ctx.Err() once ctx is done.
func (q *Queue[T]) Get(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	if item, ok := q.pop(); ok {
		return item, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
			if item, ok := q.pop(); ok {
				return item, nil
			}
			return zero, ErrEmpty
		case <-q.ready:
			if item, ok := q.pop(); ok {
				return item, nil
			}
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
