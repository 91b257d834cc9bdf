package eventing

import (
	"context"
)

// Dispatcher runs delivery work on an execution context of the subscriber's choosing.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline delivers on the subscriber's own delivery goroutine.
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Loop is a Dispatcher whose work runs on the goroutine that calls Run, the
// way an application's main thread drains its message queue.
type Loop struct {
	work chan func()
}

var _ Dispatcher = (*Loop)(nil)

// NewLoop returns a Loop that buffers up to size pending deliveries.
func NewLoop(size int) *Loop {
	return &Loop{work: make(chan func(), max(size, 1))}
}

func (l *Loop) Dispatch(fn func()) {
	l.work <- fn
}

// Run executes dispatched work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.work:
			fn()
		}
	}
}

// Drain executes the work already queued and returns how many items ran.
func (l *Loop) Drain() int {
	var n int
	for {
		select {
		case fn := <-l.work:
			fn()
			n++
		default:
			return n
		}
	}
}
