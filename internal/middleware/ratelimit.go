package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinimetric-scale-server/internal/domain"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// NewRateLimiter creates a per-client limiter from configuration
func NewRateLimiter(config domain.RateLimitConfig, logger *logrus.Logger) *RateLimiter {
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := config.ClientTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(config.RequestsPerSecond),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Allow reports whether a request from client may proceed.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.clients[client]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than the TTL.
func (l *RateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.ttl)
	removed := 0
	for client, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, client)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Handler rejects requests over the limit with 429
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		requestID := c.GetString(RequestIDKey)
		l.logger.WithFields(logrus.Fields{
			"client_ip":  c.ClientIP(),
			"path":       c.Request.URL.Path,
			"request_id": requestID,
		}).Warn("Rate limit exceeded")

		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			domain.NewAPIError(domain.ErrCodeRateLimit, "Too many requests", "", requestID))
	}
}
