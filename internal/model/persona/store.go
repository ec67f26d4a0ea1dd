package persona

import "github.com/onevoice/ivr/backend/internal/model/call"

// Store exposes persona retrieval for handlers and the prompt manager.
type Store interface {
	List() []Persona
	FindByMode(mode call.Mode) (Persona, bool)
}

// MemoryStore implements Store with an immutable in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the configured personas.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByMode looks up the persona serving a call mode.
func (s *MemoryStore) FindByMode(mode call.Mode) (Persona, bool) {
	for _, item := range s.items {
		if item.Mode == mode {
			return item, true
		}
	}
	return Persona{}, false
}
