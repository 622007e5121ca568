package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter per key. Windows that have ended are
// pruned lazily, at most once per window.
type RateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	now       func() time.Time
	clients   map[string]*clientBucket
	nextPrune time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// allow records a hit for key and reports how long to wait when over limit.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if now.After(rl.nextPrune) {
		for k, b := range rl.clients {
			if now.After(b.windowEnd) {
				delete(rl.clients, k)
			}
		}
		rl.nextPrune = now.Add(rl.window)
	}

	b, ok := rl.clients[key]
	if !ok || now.After(b.windowEnd) {
		rl.clients[key] = &clientBucket{count: 1, windowEnd: now.Add(rl.window)}
		return true, 0
	}

	if b.count >= rl.limit {
		return false, b.windowEnd.Sub(now)
	}

	b.count++
	return true, 0
}

func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		ok, wait := rl.allow(key)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			abort(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.", nil)
			return
		}

		c.Next()
	}
}

// KeyByIP is for anonymous endpoints such as login.
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func KeyByAccountOrIP(c *gin.Context) string {
	if id, ok := AccountIDFromContext(c); ok {
		return "account:" + id
	}
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	if host, _, err := net.SplitHostPort(ip); err == nil && host != "" {
		return host
	}
	return ip
}
