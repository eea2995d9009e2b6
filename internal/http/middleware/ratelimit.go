// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a lightweight, in-memory, fixed-window rate limiter
// keyed by client address. It is designed for simplicity, low overhead, and
// predictable behavior in a single-process deployment.
//
// Semantics: a window opens on the first request from an address and admits
// at most max requests until windowLen has elapsed, after which the counter
// resets. Exactly max requests succeed per window; request max+1 gets a 429.
//
// Notes:
//   - This limiter is process-local. For horizontally scaled deployments,
//     prefer a distributed limiter (e.g., Redis-backed) to enforce global limits.
//   - It protects the metered completion upstream from abuse and runaway
//     clients; it is not an authorization mechanism.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// window tracks one client address's current fixed window.
type window struct {
	start time.Time
	count int
}

// RateLimiter enforces a per-address fixed-window request limit.
//
// Windows are created on demand and stored in an internal map guarded by a
// mutex. Expired windows are evicted opportunistically during lookups so
// memory stays bounded without a background goroutine.
//
// This type is safe for concurrent use.
type RateLimiter struct {
	max       int
	windowLen time.Duration

	mu       sync.Mutex
	visitors map[string]*window
	cleanupN uint64

	now func() time.Time // test seam
}

// NewRateLimiter constructs a RateLimiter admitting max requests per address
// per windowLen. max <= 0 disables limiting entirely.
func NewRateLimiter(max int, windowLen time.Duration) *RateLimiter {
	if windowLen <= 0 {
		windowLen = time.Minute
	}
	return &RateLimiter{
		max:       max,
		windowLen: windowLen,
		visitors:  make(map[string]*window),
		now:       time.Now,
	}
}

// allow records one request for key and reports whether it is admitted.
func (rl *RateLimiter) allow(key string) (ok bool, retryAfter time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Opportunistic cleanup after a threshold of lookups. Run it BEFORE
	// touching the requested window so a stale entry for this key is also
	// eligible.
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, w := range rl.visitors {
			if now.Sub(w.start) >= rl.windowLen {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	w, okw := rl.visitors[key]
	if !okw || now.Sub(w.start) >= rl.windowLen {
		rl.visitors[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count < rl.max {
		w.count++
		return true, 0
	}
	return false, rl.windowLen - now.Sub(w.start)
}

// Handler returns a Gin middleware that enforces the fixed-window limit,
// keyed by client IP. Rejected requests get:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "<uuid>",
//	  "code":       "rate_limited",
//	  "message":    "rate limit exceeded"
//	}
//
// with Retry-After set to the seconds remaining in the window.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.max <= 0 {
			c.Next()
			return
		}

		ok, retryAfter := rl.allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		secs := int(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
