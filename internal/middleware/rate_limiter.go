package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits configures a KeyedRateLimiter: Requests events per Window with Burst
// extra capacity. Buckets idle for longer than IdleTTL are dropped.
type Limits struct {
	Requests int
	Window   time.Duration
	Burst    int
	IdleTTL  time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key. Keys are caller-chosen
// ("login:10.0.0.1", "send-request:user:u-1").
type KeyedRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedRateLimiter applies defaults to non-positive limits.
func NewKeyedRateLimiter(l Limits) *KeyedRateLimiter {
	if l.Requests <= 0 {
		l.Requests = 1
	}
	if l.Window <= 0 {
		l.Window = time.Second
	}
	if l.Burst <= 0 {
		l.Burst = 1
	}
	if l.IdleTTL <= 0 {
		l.IdleTTL = 5 * time.Minute
	}

	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(l.Window / time.Duration(l.Requests)),
		burst:   l.Burst,
		idleTTL: l.IdleTTL,
		now:     time.Now,
	}
}

// Allow spends one token from the key's bucket.
func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}

	return b.limiter.AllowN(now, 1)
}

// Len reports how many buckets are tracked.
func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedRateLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
