// Package session holds the most recently previewed plan per session id.
// A session is "the plan currently on the table", not a history: Remember
// always replaces, never merges.
package session

import (
	"sync"
	"time"

	"github.com/alemendo/intent-cli/internal/intent"
)

// Session is the last-seen plan under a given identifier.
type Session struct {
	ID        string
	Network   string
	Intent    intent.Intent
	Endpoint  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the injectable session storage boundary. The engine only ever
// calls these three methods, so a distributed implementation can replace the
// in-memory one without touching the phase controller.
type Store interface {
	Remember(s Session)
	Read(id string) (Session, bool)
	// Latest returns the most recently remembered session process-wide, for
	// conversational callers that omit a session id.
	Latest() (Session, bool)
}

// MemoryStore is a mutex-guarded map with a latest-session pointer. Writes to
// different session ids never interfere; two concurrent writers sharing one
// id race with last-write-wins semantics, which is a documented limitation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	latestID string
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Remember(s Session) {
	if s.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if existing, ok := m.sessions[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.sessions[s.ID] = s
	m.latestID = s.ID
}

func (m *MemoryStore) Read(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Latest() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latestID == "" {
		return Session{}, false
	}
	s, ok := m.sessions[m.latestID]
	return s, ok
}
