package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out a token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
}

func NewIPRateLimiter(limit rate.Limit, burst int, ttl time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
	}
}

// Allow reports whether ip may make another request now. Idle visitors are
// dropped lazily.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimit answers 429 once a client IP has used up its bucket.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			apierrors.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
