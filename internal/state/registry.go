package state

import "sync"

// Registry maps access tokens to live session states.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*AppState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*AppState)}
}

// Create registers a fresh state for the token, replacing any previous one.
func (r *Registry) Create(sessionID, accessToken string) *AppState {
	st := New(sessionID, accessToken)

	r.mu.Lock()
	prev := r.sessions[accessToken]
	r.sessions[accessToken] = st
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return st
}

// Get returns the state for a token.
func (r *Registry) Get(accessToken string) (*AppState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[accessToken]
	return st, ok
}

// Destroy removes the state and runs its closers.
func (r *Registry) Destroy(accessToken string) {
	r.mu.Lock()
	st := r.sessions[accessToken]
	delete(r.sessions, accessToken)
	r.mu.Unlock()

	if st != nil {
		st.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll destroys every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*AppState)
	r.mu.Unlock()

	for _, st := range sessions {
		st.Close()
	}
}
