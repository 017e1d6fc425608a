package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/interfaces/http/response"
	"keyauth.backend/pkg/logger"
)

const limiterTTL = 10 * time.Minute

// RateLimitRecorder is notified of every rejected request.
type RateLimitRecorder interface {
	RateLimited()
}

// RateLimitMiddleware allows perMinute requests per client IP with the given
// burst. Clients over the limit get a 429.
func RateLimitMiddleware(perMinute, burst int, rec RateLimitRecorder) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := newIPRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst, time.Now)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiter.Allow(ip) {
			c.Next()
			return
		}

		if rec != nil {
			rec.RateLimited()
		}
		logger.Warn(c.Request.Context(), "Rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.FullPath()))
		c.Header("Retry-After", "60")
		response.Abort(c, domainerrors.TooManyRequests("too many requests, try again later"))
	}
}

type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type rateLimiterEntry struct {
	limiter *rate.Limiter
	expires time.Time
}

func newIPRateLimiter(limit rate.Limit, burst int, now func() time.Time) *ipRateLimiter {
	return &ipRateLimiter{
		limiters:  make(map[string]*rateLimiterEntry),
		limit:     limit,
		burst:     burst,
		ttl:       limiterTTL,
		now:       now,
		lastSweep: now(),
	}
}

func (l *ipRateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		for k, e := range l.limiters {
			if now.After(e.expires) {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[ip]
	if !ok || now.After(entry.expires) {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(l.limit, l.burst),
		}
		l.limiters[ip] = entry
	}
	entry.expires = now.Add(l.ttl)
	return entry.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
