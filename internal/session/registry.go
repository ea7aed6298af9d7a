package session

import "sync"

// Registry maps call IDs to live sessions. Lookup is concurrent but
// write access to a session stays with the one task owning its
// connection; the attach claim makes that ownership explicit.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
	attached map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*CallSession),
		attached: make(map[string]bool),
	}
}

// Create registers a fresh ACTIVE session.
func (r *Registry) Create() *CallSession {
	s := New("")
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[id]
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// Attach hands the session to the one connection task allowed to
// mutate it. At most one claim per call: a second attach fails with
// ErrAttached until the holder detaches or the session is removed.
func (r *Registry) Attach(id string) (*CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	if s == nil {
		return nil, ErrNotFound
	}
	if r.attached[id] {
		return nil, ErrAttached
	}
	r.attached[id] = true
	return s, nil
}

// Detach releases the connection claim without destroying the session.
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	delete(r.attached, id)
	r.mu.Unlock()
}

// Remove drops a session and its claim from the registry. Called on
// terminal transition or disconnect.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	delete(r.attached, id)
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
