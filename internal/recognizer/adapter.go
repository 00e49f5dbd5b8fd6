// Package recognizer relays continuous speech recognition from a replaceable
// recognizer handle to a listener.
package recognizer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/hark/internal/fsm"
)

// ErrNoFactory indicates the adapter was built without a handle factory.
var ErrNoFactory = errors.New("recognizer factory not configured")

// unavailableFactory keeps adapter flow intact when no backend is wired.
type unavailableFactory struct{}

func (unavailableFactory) NewHandle(Callback) (Handle, error) {
	return nil, ErrNoFactory
}

// Adapter owns at most one recognizer handle and keeps it listening.
//
// After every result it starts a new session. After a speech timeout it
// replaces the handle outright. Any other error is reported and the session is
// left stalled until the owner calls StartRecognizing or CreateRecognizer.
type Adapter struct {
	logger  *slog.Logger
	factory Factory
	session SessionConfig

	mu         sync.Mutex
	listener   Listener
	handle     Handle
	generation uint64
	state      fsm.State
}

// NewAdapter constructs an adapter with no live handle.
func NewAdapter(logger *slog.Logger, listener Listener, factory Factory) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if factory == nil {
		factory = unavailableFactory{}
	}

	return &Adapter{
		logger:   logger,
		factory:  factory,
		session:  SessionConfig{PartialResults: false},
		listener: listener,
		state:    fsm.StateNoHandle,
	}
}

// SetListener replaces the listener. Passing nil detaches it.
func (a *Adapter) SetListener(listener Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = listener
}

// State returns the current lifecycle state snapshot.
func (a *Adapter) State() fsm.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Generation returns the identity counter of the most recently created handle.
func (a *Adapter) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// HasHandle reports whether a handle is currently owned.
func (a *Adapter) HasHandle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle != nil
}

// CreateRecognizer destroys any current handle, creates a new one and starts listening.
// A factory failure is reported to the listener as CodeClient.
func (a *Adapter) CreateRecognizer() {
	a.mu.Lock()
	err := a.replaceLocked()
	listener := a.listener
	a.mu.Unlock()

	if err != nil {
		a.reportCreateFailure(listener, err)
	}
}

// DestroyRecognizer releases the current handle, if any.
func (a *Adapter) DestroyRecognizer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyLocked()
}

// StartRecognizing begins one listening session on the current handle.
func (a *Adapter) StartRecognizing() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return
	}
	a.handle.StartListening(a.session)
}

// replaceLocked swaps in a fresh handle and starts it. Callers hold a.mu.
func (a *Adapter) replaceLocked() error {
	a.destroyLocked()

	a.generation++
	generation := a.generation

	handle, err := a.factory.NewHandle(a.callbackFor(generation))
	if err != nil {
		return fmt.Errorf("create recognizer handle: %w", err)
	}
	if handle == nil {
		return errors.New("create recognizer handle: factory returned nil handle")
	}

	a.handle = handle
	a.transitionLocked(fsm.EventCreate)
	a.logger.Debug("recognizer handle created", "generation", generation)

	handle.StartListening(a.session)
	return nil
}

// destroyLocked releases the handle when present. Callers hold a.mu.
func (a *Adapter) destroyLocked() {
	if a.handle != nil {
		a.handle.Destroy()
		a.logger.Debug("recognizer handle destroyed", "generation", a.generation)
	}
	a.handle = nil
	a.transitionLocked(fsm.EventDestroy)
}

// transitionLocked applies one FSM event. Callers hold a.mu.
func (a *Adapter) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(a.state, event)
	if err != nil {
		a.logger.Debug("recognizer transition rejected", "state", a.state, "event", event, "error", err.Error())
		return
	}
	a.state = next
}

// callbackFor binds handle events to the generation they were created under.
func (a *Adapter) callbackFor(generation uint64) Callback {
	return func(event Event) {
		a.dispatch(generation, event)
	}
}

// dispatch applies the restart policy to one handle event.
func (a *Adapter) dispatch(generation uint64, event Event) {
	if event.Kind == EventIgnored {
		return
	}

	a.mu.Lock()
	current := a.handle != nil && generation == a.generation
	listener := a.listener
	a.mu.Unlock()

	if !current {
		a.logger.Debug("dropping stale recognizer event", "generation", generation, "kind", event.Kind)
		return
	}
	if listener == nil {
		return
	}

	switch event.Kind {
	case EventError:
		listener.OnError(event.Code)
		if event.Code.IsSpeechTimeout() {
			a.recoverFromTimeout(generation)
			return
		}
		a.logger.Warn("recognizer session stalled", "generation", generation, "code", int(event.Code), "reason", event.Code.String())
		a.mu.Lock()
		if generation == a.generation {
			a.transitionLocked(fsm.EventError)
		}
		a.mu.Unlock()
	case EventResults:
		if text, ok := event.TopCandidate(); ok {
			listener.OnResults(text)
		}
		a.restart(generation)
	}
}

// recoverFromTimeout replaces the handle that timed out, unless the owner already did.
// A listener implementing RecreationListener hears about the replacement once
// the new handle is listening.
func (a *Adapter) recoverFromTimeout(generation uint64) {
	a.mu.Lock()
	if a.handle == nil || generation != a.generation {
		a.mu.Unlock()
		return
	}
	a.transitionLocked(fsm.EventTimeout)
	err := a.replaceLocked()
	listener := a.listener
	replaced := a.generation
	a.mu.Unlock()

	if err != nil {
		a.reportCreateFailure(listener, err)
		return
	}
	if observer, ok := listener.(RecreationListener); ok {
		observer.OnRecreated(replaced)
	}
}

// restart begins the next session on the handle that produced a result.
func (a *Adapter) restart(generation uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil || generation != a.generation {
		return
	}
	a.transitionLocked(fsm.EventResult)
	a.handle.StartListening(a.session)
}

// reportCreateFailure logs a handle creation failure and surfaces it as CodeClient.
func (a *Adapter) reportCreateFailure(listener Listener, err error) {
	a.logger.Error("recognizer create failed", "error", err.Error())
	if listener != nil {
		listener.OnError(CodeClient)
	}
}
