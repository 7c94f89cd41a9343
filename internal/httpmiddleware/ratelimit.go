package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// sweepThreshold is the bucket count above which full, idle buckets are dropped.
const sweepThreshold = 10000

// SimpleTokenBucket is an in-memory per-client rate limiter. Tokens refill
// continuously at rate per minute up to capacity.
type SimpleTokenBucket struct {
	capacity float64
	perSec   float64
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewSimpleTokenBucket creates a limiter with capacity tokens refilled at
// perMinute. A non-positive capacity defaults to perMinute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware limits requests per client IP.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, remaining, wait := l.take(ip)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}

// take spends one token for key. It returns the whole tokens left and, when
// refused, the seconds until the next token.
func (l *SimpleTokenBucket) take(key string) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, found := l.state[key]
	if !found {
		if len(l.state) >= sweepThreshold {
			l.sweep(now)
		}
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	} else {
		b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.last).Seconds()*l.perSec)
		b.last = now
	}

	if b.tokens < 1 {
		wait := 60
		if l.perSec > 0 {
			wait = int(math.Ceil((1-b.tokens)/l.perSec - 1e-9))
		}
		return false, 0, wait
	}
	b.tokens--
	return true, int(b.tokens), 0
}

// sweep drops buckets that would be full by now. Callers hold mu.
func (l *SimpleTokenBucket) sweep(now time.Time) {
	for key, b := range l.state {
		if b.tokens+now.Sub(b.last).Seconds()*l.perSec >= l.capacity {
			delete(l.state, key)
		}
	}
}
