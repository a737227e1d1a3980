package poller

import (
	"context"
	"sync"
	"time"
)

// Task runs fn every interval on its own goroutine until stopped.
// A slow tick only delays the next tick of the same task.
type Task struct {
	interval  time.Duration
	fn        func(ctx context.Context)
	immediate bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Task
type Option func(*Task)

// Immediate runs the first tick right after Start instead of one interval later
func Immediate() Option {
	return func(t *Task) {
		t.immediate = true
	}
}

// New creates a stopped task
func New(interval time.Duration, fn func(ctx context.Context), opts ...Option) *Task {
	if interval <= 0 {
		interval = time.Second
	}
	t := &Task{interval: interval, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the loop. Calling Start on a running task does nothing.
// The loop also ends when ctx is cancelled.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(ctx, done)
}

// Stop cancels the loop and waits for an in-flight tick to return.
// Calling Stop on a stopped task does nothing.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Interval returns the tick period
func (t *Task) Interval() time.Duration {
	return t.interval
}

// Running reports whether the loop has been started and not stopped
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if t.immediate {
		t.fn(ctx)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			t.fn(ctx)
		}
	}
}
