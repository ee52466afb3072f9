package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedutils "github.com/clubsphere/admin-backend/shared/utils"
	authutils "github.com/clubsphere/admin-backend/v1/utils"
)

// RateLimiter implements a simple in-memory sliding-window rate limiter
type RateLimiter struct {
	requests  map[string][]time.Time
	mutex     sync.Mutex
	maxReqs   int
	window    time.Duration
	lastSweep time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests:  make(map[string][]time.Time),
		maxReqs:   maxRequests,
		window:    window,
		lastSweep: time.Now(),
	}
}

// IsAllowed checks if a request from the given IP is allowed
func (rl *RateLimiter) IsAllowed(clientIP string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	// Drop records of clients that went quiet, at most once per window,
	// so the map does not grow with every IP ever seen.
	if now.Sub(rl.lastSweep) > rl.window {
		rl.sweep(now)
		rl.lastSweep = now
	}

	var validRequests []time.Time
	for _, reqTime := range rl.requests[clientIP] {
		if now.Sub(reqTime) < rl.window {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= rl.maxReqs {
		return false
	}

	validRequests = append(validRequests, now)
	rl.requests[clientIP] = validRequests

	return true
}

// sweep removes expired request records. Callers must hold the mutex.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, times := range rl.requests {
		valid := times[:0]
		for _, reqTime := range times {
			if now.Sub(reqTime) < rl.window {
				valid = append(valid, reqTime)
			}
		}
		if len(valid) == 0 {
			delete(rl.requests, ip)
		} else {
			rl.requests[ip] = valid
		}
	}
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(maxRequests, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := authutils.GetRequestIP(r)

			if !limiter.IsAllowed(clientIP) {
				slog.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
				sharedutils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
