// Package loop provides a single-threaded, cooperative task queue.
//
// Tasks run one at a time, in the order they were posted. A task posted from
// inside another task runs on a later turn, after the posting task returns.
// Everything that touches a context's bridge runs on its loop, so the bridge
// needs no locking of its own.
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Do when the loop stops before running the task.
var ErrStopped = errors.New("loop: stopped")

// Loop is an unbounded FIFO task queue.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// New creates an idle loop. Tasks posted before Run are kept.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post schedules fn for a later turn. It never blocks and is safe to call
// from any goroutine, including from inside a running task.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return.
// Must not be called from inside a task: the loop would wait on itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is done. Tasks still queued at that point are
// dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		for l.Step() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Step runs the next queued task, if any, on the calling goroutine.
// Reports whether a task ran.
func (l *Loop) Step() bool {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()

	fn()
	return true
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks posted while draining. Returns the number of tasks run.
func (l *Loop) Drain() int {
	n := 0
	for l.Step() {
		n++
	}
	return n
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.done)
	}
}
