package authservice

import "sync"

// Phase is the client's view of where authentication stands. The tracker
// starts in PhaseChecking until the stored session has been validated.
type Phase string

const (
	PhaseChecking      Phase = "checking"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// State is an immutable snapshot of the session.
type State struct {
	Phase      Phase
	IdentityID string
}

// Tracker holds the authenticated identity and its loading phase and fans
// state changes out to registered listeners. Mutation happens only through
// SetAuthenticated and SetAnonymous so every consumer observes the same
// transitions.
type Tracker struct {
	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewTracker() *Tracker {
	return &Tracker{
		state:     State{Phase: PhaseChecking},
		listeners: map[int]func(State){},
	}
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetAuthenticated records a signed-in identity and notifies listeners.
func (t *Tracker) SetAuthenticated(identityID string) {
	t.transition(State{Phase: PhaseAuthenticated, IdentityID: identityID})
}

// SetAnonymous clears the identity and notifies listeners.
func (t *Tracker) SetAnonymous() {
	t.transition(State{Phase: PhaseAnonymous})
}

// OnChange registers a listener called on every state transition. The
// returned function unsubscribes it; calling it more than once is harmless.
func (t *Tracker) OnChange(listener func(State)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = listener
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) transition(next State) {
	t.mu.Lock()
	if t.state == next {
		t.mu.Unlock()
		return
	}
	t.state = next
	listeners := make([]func(State), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}
