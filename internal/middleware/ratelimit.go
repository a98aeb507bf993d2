package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ruangujian/asesmen-backend/internal/response"
)

// RateLimiter is a per-client-IP token bucket. Each bucket starts full
// with rate tokens and refills in whole intervals; a request finding an
// empty bucket is rejected with 429.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per interval per
// IP, with a background reaper for idle buckets.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}
	go rl.reap()
	return rl
}

// allow takes one token for ip, refilling first. Separated from the
// middleware so the policy is testable without HTTP plumbing.
func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[ip] = b
	}

	if intervals := int(now.Sub(b.lastRefill) / rl.interval); intervals > 0 {
		b.tokens += intervals * rl.rate
		if b.tokens > rl.rate {
			b.tokens = rl.rate
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Middleware rejects requests once the client's bucket is exhausted.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// reap drops buckets idle long enough to be full again anyway.
func (rl *RateLimiter) reap() {
	for range time.Tick(time.Minute) {
		cutoff := 3 * rl.interval
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.lastRefill) > cutoff {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
