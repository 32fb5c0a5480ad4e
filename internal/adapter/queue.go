package adapter

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the event buffer depth used when none is given.
const DefaultQueueSize = 64

// Queue is a bounded serial event queue. Tasks posted to it run one at a
// time on a single owner goroutine, in posting order. It is the only
// synchronization mechanism the adapter uses: anything that touches
// adapter-owned state runs as a task here.
type Queue struct {
	tasks   chan func()
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewQueue creates a queue with the given buffer size and starts its
// owner goroutine.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		tasks: make(chan func(), size),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			// Run out whatever was accepted before the close.
			for {
				select {
				case task := <-q.tasks:
					task()
				default:
					return
				}
			}
		case task := <-q.tasks:
			task()
		}
	}
}

// Post enqueues a task. It never blocks: when the buffer is full the task
// is dropped and counted, and when the queue is closed the task is
// rejected. Returns whether the task was accepted.
func (q *Queue) Post(task func()) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		q.dropped.Add(1)
		slog.Warn("[Queue] Event buffer full, dropping task", "dropped_total", q.dropped.Load())
		return false
	}
}

// Close stops the queue after the tasks already accepted have run.
// Safe to call more than once, and safe to call from inside a task.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.quit)
	}
}

// Done is closed once the owner goroutine has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Dropped returns the number of tasks rejected because the buffer was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Flush blocks until every task posted before the call has run, or the
// queue has shut down.
func (q *Queue) Flush() {
	marker := make(chan struct{})
	for !q.Post(func() { close(marker) }) {
		if q.closed.Load() {
			<-q.done
			return
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-marker:
	case <-q.done:
	}
}
