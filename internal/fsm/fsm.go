// Package fsm defines the recognizer handle lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateNoHandle  State = "no_handle"
	StateListening State = "listening"
)

const (
	EventCreate  Event = "create"
	EventDestroy Event = "destroy"
	EventResult  Event = "result"
	EventTimeout Event = "timeout"
	EventError   Event = "error"
)

// Transition returns the state reached by applying event to current.
//
// Callback events (result, timeout, error) are only valid while a handle is
// listening; in no_handle they can only come from a stale handle.
func Transition(current State, event Event) (State, error) {
	switch event {
	case EventCreate:
		if current != StateNoHandle && current != StateListening {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateListening, nil
	case EventDestroy:
		if current != StateNoHandle && current != StateListening {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateNoHandle, nil
	}

	switch current {
	case StateNoHandle:
		return current, invalidTransition(current, event)
	case StateListening:
		switch event {
		case EventResult, EventTimeout, EventError:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
