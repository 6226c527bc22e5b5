package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemorySessionStore implements SessionStore for tests and single-process
// development (SOCIALHUB_SESSION_BACKEND=memory). It follows the same error
// contract as the Redis and PostgreSQL stores.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

// Save rejects sessions that have already expired.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	if !session.ExpiresAt.After(s.now()) {
		return fmt.Errorf("save session: %w", ErrSessionExpired)
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Has reports whether a session exists.
func (s *InMemorySessionStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}
