package api

import (
	"sync"

	"github.com/sebas/linegate/internal/events"
)

// EventLog retains the most recent lifecycle events in a ring buffer for
// the admin API's events endpoint.
type EventLog struct {
	mu   sync.RWMutex
	buf  []events.Event
	next int
	full bool
}

// NewEventLog creates a log holding up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventLog{buf: make([]events.Event, capacity)}
}

// Consume drains the channel into the log until the channel closes.
// Run it on its own goroutine.
func (l *EventLog) Consume(ch <-chan events.Event) {
	for e := range ch {
		l.add(e)
	}
}

func (l *EventLog) add(e events.Event) {
	l.mu.Lock()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// Recent returns the retained events, oldest first.
func (l *EventLog) Recent() []events.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []events.Event
	if l.full {
		out = append(out, l.buf[l.next:]...)
	}
	out = append(out, l.buf[:l.next]...)
	return out
}
