// Package mainloop provides the single UI-owning goroutine that all
// asynchronous results are delivered on.
package mainloop

import (
	"context"
	"sync"
	"time"
)

// Dispatcher schedules a function on the UI-owning goroutine.
type Dispatcher interface {
	Post(fn func()) bool
}

// Loop is an unbounded queue of functions drained by one goroutine.
// Post never blocks, so background workers cannot stall on a slow UI.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	ready  chan struct{}
	closed bool
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{ready: make(chan struct{}, 1)}
}

// Post queues fn. It reports false once the loop is closed, in which case fn
// is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	if len(l.queue) > 0 {
		select {
		case l.ready <- struct{}{}:
		default:
		}
	}
	return fn, true
}

// Wait blocks until a function is queued and returns it without running it.
// The caller runs it on the UI goroutine.
func (l *Loop) Wait(ctx context.Context) (func(), bool) {
	for {
		if fn, ok := l.pop(); ok {
			return fn, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-l.ready:
		}
	}
}

// Next waits up to timeout for one function and runs it on the calling goroutine.
func (l *Loop) Next(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fn, ok := l.Wait(ctx)
	if !ok {
		return false
	}
	fn()
	return true
}

// RunPending runs everything queued right now and returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		fn, ok := l.pop()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Run drains the loop on the calling goroutine until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		fn, ok := l.Wait(ctx)
		if !ok {
			return
		}
		fn()
	}
}

// Len reports the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close rejects further posts. Queued functions are discarded.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.queue = nil
}
