package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/socialhub/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the session identifier does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session has passed its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore persists issued sessions so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Session represents an authenticated login carried by a cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Manager manages the lifecycle of cookie sessions backed by a persistent store.
type Manager struct {
	ttl   time.Duration
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager that issues sessions valid for ttl.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		ttl:   ttl,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// TTL reports how long issued sessions stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new session for the user.
func (m *Manager) Issue(ctx context.Context, user models.User) (Session, error) {
	if user.ID == "" {
		return Session{}, errors.New("user id must be provided")
	}

	id, err := randomToken()
	if err != nil {
		return Session{}, err
	}

	session := Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return Session{}, err
	}

	return session, nil
}

// Resolve loads an active session. Expired sessions are removed.
func (m *Manager) Resolve(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, id)
	if err != nil {
		return Session{}, err
	}

	if m.now().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return Session{}, ErrSessionExpired
	}

	return session, nil
}

// Revoke removes the session from the store.
func (m *Manager) Revoke(ctx context.Context, id string) {
	if id == "" {
		return
	}
	_ = m.store.Delete(ctx, id)
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
