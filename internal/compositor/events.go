package compositor

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/compositor/internal/timebase"
)

// Event is published after every rendered frame.
type Event struct {
	Session  uuid.UUID
	Seq      uint64
	Time     timebase.Time
	Dirty    []image.Rectangle
	Full     bool
	Failures int
	Elapsed  time.Duration
}

// eventQueue never blocks the render thread: when the consumer lags the
// oldest event is dropped.
type eventQueue struct {
	ch chan Event
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{ch: make(chan Event, max(size, 1))}
}

func (q *eventQueue) publish(e Event) {
	for {
		select {
		case q.ch <- e:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

func (q *eventQueue) close() { close(q.ch) }
