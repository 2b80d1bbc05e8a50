// Package loop runs the cooperative main loop: hardware callbacks, timer fires and calls from
// the display host are all executed one at a time on a single goroutine.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

// ErrStopped is returned when work is posted to a loop that is no longer running.
var ErrStopped = errors.New("loop stopped")

// minInterval is the shortest period accepted by Every.
const minInterval = time.Millisecond

type Loop struct {
	clock clock.Clock
	tasks chan func()
	done  chan struct{}
}

// New конструктор. queue is the number of closures that may wait for the loop.
func New(clk clock.Clock, queue int) *Loop {
	if queue <= 0 {
		queue = 1
	}
	return &Loop{
		clock: clk,
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Clock returns the clock driving the loop's tasks.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Run executes posted closures until ctx is done. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn from any goroutine. It blocks while the queue is full and reports false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it. It must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ok := l.Post(func() {
		defer close(finished)
		fn()
	})
	if !ok {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Task is a repeating task. Holding the handle is the only way to cancel it.
type Task struct {
	ticker    *clock.Ticker
	cancelled *atomic.Bool
	stop      chan struct{}
}

// Every runs fn on the loop every d until the returned task is cancelled.
func (l *Loop) Every(d time.Duration, fn func()) *Task {
	if d < minInterval {
		d = minInterval
	}
	t := &Task{
		ticker:    l.clock.Ticker(d),
		cancelled: atomic.NewBool(false),
		stop:      make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				t.Cancel()
				return
			case <-t.ticker.C:
				l.Post(func() {
					if !t.cancelled.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

// Cancel stops the task. Once Cancel returns fn is never called again, including for ticks that
// were already queued on the loop. Cancel is idempotent.
func (t *Task) Cancel() {
	if t == nil || !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.ticker.Stop()
	close(t.stop)
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}
