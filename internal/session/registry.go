package session

import (
	"sync"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

type entry struct {
	mu    sync.Mutex
	state AppState
}

// Registry holds live sessions by id. Updates to one session are serialized; different
// sessions proceed independently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Put stores state under its ID.
func (r *Registry) Put(state AppState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[state.ID] = &entry{state: state}
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

// Get returns the current state of a session.
func (r *Registry) Get(id string) (AppState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return AppState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Update applies fn to a session under its lock. The returned state is stored even
// when fn fails, so notices and partial results survive.
func (r *Registry) Update(id string, fn func(AppState) (AppState, error)) (AppState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return AppState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.state)
	next.ID = e.state.ID
	e.state = next
	return next, err
}

// UpdateOthers applies fn to every session except skip.
func (r *Registry) UpdateOthers(skip string, fn func(AppState) AppState) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for id, e := range r.sessions {
		if id != skip {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		id := e.state.ID
		e.state = fn(e.state)
		e.state.ID = id
		e.mu.Unlock()
	}
}

// Delete removes a session and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
