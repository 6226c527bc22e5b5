package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/socialhub/backend/internal/auth"
)

const (
	sessionKeyPrefix   = "session:"
	userSessionsFormat = "user:%s:sessions"
)

// RedisSessionStore keeps login sessions in Redis with a TTL matching their
// expiry and a per-user index set.
type RedisSessionStore struct {
	client redis.UniversalClient
}

// NewRedisSessionStore constructs a session store backed by Redis.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Save stores the session until it expires.
func (s *RedisSessionStore) Save(ctx context.Context, session auth.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save session: %w", auth.ErrSessionExpired)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	userKey := fmt.Sprintf(userSessionsFormat, session.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, data, ttl)
	pipe.SAdd(ctx, userKey, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// Find loads a session by identifier.
func (s *RedisSessionStore) Find(ctx context.Context, id string) (auth.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("get session: %w", err)
	}

	var session auth.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return auth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	return session, nil
}

// Delete removes the session and its index entry.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Find(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, fmt.Sprintf(userSessionsFormat, session.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

var _ auth.SessionStore = (*RedisSessionStore)(nil)
