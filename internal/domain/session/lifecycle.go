package session

import "sync"

// State is the load state of a session.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Lifecycle gates the loading indicator. It starts in StateLoading and moves
// to StateReady once; there is no way back.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

func newLifecycle() *Lifecycle {
	return &Lifecycle{state: StateLoading}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// MarkReady moves to StateReady and reports whether this call made the
// transition.
func (l *Lifecycle) MarkReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateReady {
		return false
	}
	l.state = StateReady
	return true
}
