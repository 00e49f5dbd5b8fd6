package session

import (
	"time"

	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/recognizer"
)

// EventKind names what the engine receives from one queued event.
type EventKind string

const (
	KindResult EventKind = "result"
	KindError  EventKind = "error"
)

// Event is one listener notification waiting for the engine to poll.
type Event struct {
	Kind       EventKind
	Text       string
	Code       recognizer.Code
	Generation uint64
	At         time.Time
}

// Wire converts the event to its IPC form.
func (e Event) Wire() ipc.Event {
	out := ipc.Event{
		Kind:       string(e.Kind),
		Text:       e.Text,
		Generation: e.Generation,
		At:         e.At,
	}
	if e.Kind == KindError {
		out.Code = int(e.Code)
		out.CodeName = e.Code.String()
	}
	return out
}

// queue is a bounded FIFO that evicts the oldest entry when full.
type queue struct {
	items []Event
	limit int
}

func newQueue(limit int) *queue {
	if limit <= 0 {
		limit = 1
	}
	return &queue{items: make([]Event, 0, limit), limit: limit}
}

// push appends e and reports whether an older event was evicted.
func (q *queue) push(e Event) bool {
	dropped := false
	if len(q.items) >= q.limit {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		dropped = true
	}
	q.items = append(q.items, e)
	return dropped
}

// take removes and returns up to n of the oldest events. n <= 0 takes all.
func (q *queue) take(n int) []Event {
	if len(q.items) == 0 {
		return nil
	}
	if n <= 0 || n > len(q.items) {
		n = len(q.items)
	}
	out := append([]Event(nil), q.items[:n]...)
	rest := copy(q.items, q.items[n:])
	q.items = q.items[:rest]
	return out
}

func (q *queue) len() int {
	return len(q.items)
}
