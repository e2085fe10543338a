// Package dispatch provides a serial execution context: every task posted to a
// Loop runs on the same goroutine, in order.
package dispatch

import "sync"

// Loop is a single-goroutine FIFO task queue.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewLoop starts a loop goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn. It returns false once the loop has been closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish. A panic in fn is
// re-raised in the caller and the loop keeps running.
// It must not be called from a task running on the same loop.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	var failure any
	if !l.Post(func() {
		defer close(finished)
		defer func() { failure = recover() }()
		fn()
	}) {
		return false
	}
	<-finished
	if failure != nil {
		panic(failure)
	}
	return true
}

// Close stops accepting tasks, runs what is already queued and waits for
// the loop goroutine to exit. Safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	already := l.closed
	l.closed = true
	l.mu.Unlock()

	if !already {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for range l.wake {
		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			closed := l.closed
			l.mu.Unlock()

			for _, fn := range batch {
				fn()
			}
			if len(batch) > 0 {
				continue
			}
			if closed {
				return
			}
			break
		}
	}
}
