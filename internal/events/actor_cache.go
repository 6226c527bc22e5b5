package events

import (
	"context"
	"sync"
	"time"

	"github.com/socialhub/backend/internal/models"
)

type actorEntry struct {
	user    models.User
	expires time.Time
}

// CachingUserFinder wraps another UserFinder with a TTL-based in-memory cache.
// Only successful lookups are cached.
type CachingUserFinder struct {
	base UserFinder
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]actorEntry
}

// NewCachingUserFinder returns a UserFinder that caches lookups for the provided TTL.
func NewCachingUserFinder(base UserFinder, ttl time.Duration) *CachingUserFinder {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingUserFinder{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]actorEntry),
	}
}

// FindByID returns the cached user when available, otherwise it delegates to
// the underlying finder and stores the result.
func (c *CachingUserFinder) FindByID(ctx context.Context, id string) (models.User, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, nil
	}

	user, err := c.base.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	c.mu.Lock()
	c.items[id] = actorEntry{user: user, expires: now.Add(c.ttl)}
	for key, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	return user, nil
}
