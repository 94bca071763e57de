package events

import (
	"context"
	"sync"
)

// Poster schedules work on the goroutine that owns the history state.
// *Loop implements it; the dashboard adapts tview's QueueUpdateDraw.
type Poster interface {
	Post(fn func())
}

// PosterFunc adapts a function to the Poster interface
type PosterFunc func(fn func())

func (f PosterFunc) Post(fn func()) { f(fn) }

// Loop runs posted functions one at a time, in posting order
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop creates a loop. Nothing runs until Run or Drain is called.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post appends fn to the queue. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) runOne() bool {
	fn, ok := l.next()
	if !ok {
		return false
	}
	fn()
	return true
}

// Run executes posted functions until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	for {
		for l.runOne() {
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs every queued function on the calling goroutine, including
// ones posted while draining, and returns once the queue is empty.
func (l *Loop) Drain() int {
	n := 0
	for l.runOne() {
		n++
	}
	return n
}
