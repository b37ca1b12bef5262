package clocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to a scheduled callback. Stop may be called more than
// once; after it returns the callback never runs again.
type Timer interface {
	Stop()
}

// Scheduler runs fn first after `first` and then every `interval`.
// A zero interval fires once.
type Scheduler interface {
	Schedule(first, interval time.Duration, fn func()) Timer
}

// RunLoop serializes every state change onto one goroutine. Timer fires
// and external notifications are queued as closures and run one at a time.
type RunLoop struct {
	queue  chan func()
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func NewRunLoop() *RunLoop {
	return &RunLoop{
		queue: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *RunLoop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to finish. It returns false
// when the loop stopped before fn could run.
func (l *RunLoop) Call(fn func()) bool {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Run executes queued closures until ctx is cancelled.
func (l *RunLoop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *RunLoop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

// Schedule implements Scheduler. Fires are delivered through the queue, so
// a long-running closure delays a tick but never drops the loop into a
// state where two ticks run at once.
func (l *RunLoop) Schedule(first, interval time.Duration, fn func()) Timer {
	t := &loopTimer{stopCh: make(chan struct{})}
	fire := func() {
		if t.stopped.Load() {
			return
		}
		fn()
	}

	go func() {
		wait := time.NewTimer(first)
		defer wait.Stop()
		select {
		case <-wait.C:
		case <-t.stopCh:
			return
		case <-l.done:
			return
		}
		if !t.deliver(l, fire) || interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !t.deliver(l, fire) {
					return
				}
			case <-t.stopCh:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

type loopTimer struct {
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

func (t *loopTimer) deliver(l *RunLoop, fire func()) bool {
	select {
	case l.queue <- fire:
		return true
	case <-t.stopCh:
		return false
	case <-l.done:
		return false
	}
}

func (t *loopTimer) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		close(t.stopCh)
	})
}

// stopTimer stops t if it was ever started.
func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
