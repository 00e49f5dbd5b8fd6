package recognizer

// Listener receives the two notifications the adapter emits.
type Listener interface {
	OnResults(text string)
	OnError(code Code)
}

// RecreationListener is optionally implemented by a Listener that wants to
// know when a speech timeout was followed by a successful handle replacement.
type RecreationListener interface {
	OnRecreated(generation uint64)
}

// ListenerFuncs adapts a pair of functions to the Listener interface.
// Nil fields are skipped.
type ListenerFuncs struct {
	Results func(string)
	Error   func(Code)
}

func (l ListenerFuncs) OnResults(text string) {
	if l.Results != nil {
		l.Results(text)
	}
}

func (l ListenerFuncs) OnError(code Code) {
	if l.Error != nil {
		l.Error(code)
	}
}

// SessionConfig is the per-session recognizer configuration.
type SessionConfig struct {
	PartialResults bool
}

// Callback receives handle events.
type Callback func(Event)

// Handle is one live recognizer resource.
//
// StartListening begins a single listening session and returns immediately;
// the session ends with exactly one Results or Error event. Implementations
// must deliver events from their own goroutine, never from inside
// StartListening or Factory.NewHandle. Destroy releases the handle and is safe
// to call more than once; a destroyed handle should stop delivering events.
type Handle interface {
	StartListening(SessionConfig)
	Destroy()
}

// Factory creates handles bound to a callback.
type Factory interface {
	NewHandle(Callback) (Handle, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(Callback) (Handle, error)

func (f FactoryFunc) NewHandle(cb Callback) (Handle, error) {
	return f(cb)
}
