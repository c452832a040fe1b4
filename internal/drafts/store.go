// Package drafts keeps the unsent question text per entity so switching
// between suspects never loses what the player was typing. Session-scoped
// memory only; drafts do not survive a reload.
package drafts

import "sync"

type Store struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewStore() *Store {
	return &Store{entries: map[string]string{}}
}

// Save records the draft for an entity. An empty text clears it.
func (s *Store) Save(entityID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.entries, entityID)
		return
	}
	s.entries[entityID] = text
}

// Load returns the saved draft for an entity, empty when there is none.
func (s *Store) Load(entityID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[entityID]
}
