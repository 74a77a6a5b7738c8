package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TechnicianHeader identifies the technician behind a request. It is set by
// the session component in front of the API.
const TechnicianHeader = "X-Technician-ID"

// KeyFunc returns the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ClientKey counts requests per technician, or per client IP for anonymous
// callers.
func ClientKey(c *gin.Context) string {
	if id := c.GetHeader(TechnicianHeader); id != "" {
		return "tech:" + id
	}
	return "ip:" + c.ClientIP()
}

// ClientRateLimiter stores a rate limiter for each client key.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      *sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		mu:      &sync.RWMutex{},
		r:       r,
		b:       b,
	}
}

// add creates the limiter for key unless a concurrent request already did.
func (i *ClientRateLimiter) add(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, ok := i.clients[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.clients[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for a client key.
func (i *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.clients[key]
	i.mu.RUnlock()

	if !exists {
		return i.add(key)
	}
	return limiter
}

// RateLimiter is a middleware limiting each client key to r requests per
// second with bursts of b.
func RateLimiter(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientKey
	}
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "reason": "too many requests"})
			return
		}
		c.Next()
	}
}
