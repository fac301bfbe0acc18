package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ClientLimiter hands out one token bucket per client IP. Buckets of clients
// that stay quiet for longer than the idle period are forgotten.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	r       rate.Limit
	b       int
}

// NewClientLimiter creates a limiter allowing r requests per second with
// bursts of b for every client.
func NewClientLimiter(r rate.Limit, b int, idle time.Duration) *ClientLimiter {
	return &ClientLimiter{
		buckets: cache.New(idle, 2*idle),
		r:       r,
		b:       b,
	}
}

// Limiter returns the bucket for ip, creating it on first use.
func (l *ClientLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(ip); ok {
		limiter := v.(*rate.Limiter)
		// Touch to push the expiry forward.
		l.buckets.SetDefault(ip, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.buckets.SetDefault(ip, limiter)
	return limiter
}

// Allow consumes one token for ip.
func (l *ClientLimiter) Allow(ip string) bool {
	return l.Limiter(ip).Allow()
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(l *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
