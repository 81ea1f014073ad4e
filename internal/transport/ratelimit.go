package transport

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter tracks per-IP upload limits using token buckets
type RateLimiter struct {
	visitors sync.Map
	rate     rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows r requests per second per client with the given
// burst. A background goroutine evicts clients idle for ten minutes.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:  r,
		burst: burst,
		done:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.visitors.Load(ip); ok {
		vis := v.(*visitor)
		vis.lastSeen.Store(now)
		return vis.limiter
	}
	vis := &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
	vis.lastSeen.Store(now)
	actual, _ := rl.visitors.LoadOrStore(ip, vis)
	return actual.(*visitor).limiter
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(visitorTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-visitorTTL).UnixNano()
			rl.visitors.Range(func(key, value any) bool {
				if value.(*visitor).lastSeen.Load() < cutoff {
					rl.visitors.Delete(key)
				}
				return true
			})
		case <-rl.done:
			return
		}
	}
}

// Stop terminates the background cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware rejects clients that exhausted their bucket with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   http.StatusText(http.StatusTooManyRequests),
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
