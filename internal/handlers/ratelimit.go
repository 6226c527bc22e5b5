package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(scope, clientIP(r)))
}

func allowUser(limiter RateLimiter, userID, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(scope, "user:"+userID))
}

func rateLimitKey(scope, subject string) string {
	if scope == "" {
		return subject
	}
	return fmt.Sprintf("%s:%s", scope, subject)
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr from
// the proxy headers.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
