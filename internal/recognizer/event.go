package recognizer

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventIgnored covers every lifecycle notification the adapter discards:
	// ready, speech begin/end, level changes, buffers, partials.
	EventIgnored EventKind = iota
	EventResults
	EventError
)

// Event is the single message a handle delivers back to the adapter.
type Event struct {
	Kind EventKind
	// Candidates are recognition alternatives ordered best first. A nil slice
	// means the backend reported no candidate list at all.
	Candidates []string
	Code       Code
}

// Results builds a result event from ordered candidates.
func Results(candidates ...string) Event {
	return Event{Kind: EventResults, Candidates: candidates}
}

// Error builds an error event.
func Error(code Code) Event {
	return Event{Kind: EventError, Code: code}
}

// Ignored builds an event the adapter drops on receipt.
func Ignored() Event {
	return Event{Kind: EventIgnored}
}

// TopCandidate returns the first candidate when the list is present and non-empty.
func (e Event) TopCandidate() (string, bool) {
	if len(e.Candidates) == 0 {
		return "", false
	}
	return e.Candidates[0], true
}
