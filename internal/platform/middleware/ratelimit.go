package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns limits suited to interactive query traffic.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// maxTrackedClients bounds the limiter map. When the bound is hit, clients
// that have been idle long enough for their bucket to fully refill are
// evicted; they lose nothing by being forgotten.
const maxTrackedClients = 10000

type client struct {
	tokens   float64
	lastSeen time.Time
}

// rateLimiter tracks token buckets for every client key under one lock.
// Query compilation requests are short, so contention on a single mutex is
// cheaper than a bucket-per-key lock hierarchy.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	cfg     RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*client),
		cfg:     cfg,
	}
}

// take refills the key's bucket for the elapsed time, then spends one token
// if available. It reports the tokens left after the call and whether the
// request may proceed.
func (rl *rateLimiter) take(key string, now time.Time) (float64, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= maxTrackedClients {
			rl.evictStale(now)
		}
		cl = &client{tokens: float64(rl.cfg.BurstSize), lastSeen: now}
		rl.clients[key] = cl
	} else {
		cl.tokens += now.Sub(cl.lastSeen).Seconds() * rl.cfg.RequestsPerSecond
		if cl.tokens > float64(rl.cfg.BurstSize) {
			cl.tokens = float64(rl.cfg.BurstSize)
		}
		cl.lastSeen = now
	}

	if cl.tokens < 1 {
		return cl.tokens, false
	}
	cl.tokens--
	return cl.tokens, true
}

// evictStale removes clients idle long enough for a full refill. Caller
// holds the lock.
func (rl *rateLimiter) evictStale(now time.Time) {
	idle := time.Second
	if rl.cfg.RequestsPerSecond > 0 {
		idle = time.Duration(float64(rl.cfg.BurstSize)/rl.cfg.RequestsPerSecond*float64(time.Second)) + time.Second
	}
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) >= idle {
			delete(rl.clients, key)
		}
	}
}

// retryAfter reports whole seconds until the key's bucket holds a token.
func (rl *rateLimiter) retryAfter(key string, now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.cfg.RequestsPerSecond <= 0 {
		return 1
	}
	cl, ok := rl.clients[key]
	if !ok {
		return 1
	}
	secs := int(math.Ceil((1 - cl.tokens) / rl.cfg.RequestsPerSecond))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// keyFor picks the limiter key. Authenticated callers are limited per
// subject so a user behind a NAT is not throttled by their neighbors;
// anonymous callers fall back to the remote IP.
func keyFor(c echo.Context) string {
	if subject, ok := c.Get("auth_subject").(string); ok && subject != "" {
		return "sub:" + subject
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a middleware enforcing cfg per client key.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	rl := newRateLimiter(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFor(c)
			now := time.Now()

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))

			left, ok := rl.take(key, now)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(int(left)))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(rl.retryAfter(key, now)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
