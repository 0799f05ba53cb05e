package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter counts one hit for key. A rejected hit reports how long until the
// key's window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// MemoryLimiter is a per-process fixed window limiter for deployments without
// Redis. Windows start at a key's first hit.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]fixedWindow
	nextSweep time.Time
}

type fixedWindow struct {
	hits   int
	resets time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]fixedWindow),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resets) {
		w = fixedWindow{resets: now.Add(l.window)}
	}
	if w.hits >= l.limit {
		return false, w.resets.Sub(now), nil
	}
	w.hits++
	l.windows[key] = w
	return true, 0, nil
}

// sweep drops finished windows at most once per window length.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resets) {
			delete(l.windows, k)
		}
	}
	l.nextSweep = now.Add(l.window)
}

// RateLimit applies l to requests keyed by scope and keyFn. When the limiter
// itself fails the request is let through and a warning logged.
func RateLimit(l Limiter, scope string, keyFn func(*gin.Context) string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		allowed, retryAfter, err := l.Allow(c.Request.Context(), scope+":"+key)
		switch {
		case err != nil:
			log.WarnContext(c.Request.Context(), "rate_limiter_unavailable", "scope", scope, "error", err.Error())
		case !allowed:
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			abortWithError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.", nil)
			return
		}
		c.Next()
	}
}

// retryAfterSeconds rounds up to whole seconds, never below zero.
func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}

func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// KeyByUserOrIP keys signed-in callers by user id so clients behind one NAT
// do not share a budget.
func KeyByUserOrIP(c *gin.Context) string {
	if id, ok := UserIDFromContext(c); ok && id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil && host != "" {
		return host
	}
	return ip
}
