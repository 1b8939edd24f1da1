package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client IP. Idle buckets are dropped at
// most once per sweepEvery.
type RateLimiter struct {
	name       string
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	sweepEvery time.Duration
	mu         sync.Mutex
	visitors   map[string]*visitor
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimiter allows burst requests at once and then one every interval.
func NewRateLimiter(name string, interval time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		name:       name,
		limit:      rate.Every(interval),
		burst:      burst,
		idleTTL:    10 * time.Minute,
		sweepEvery: time.Minute,
		visitors:   make(map[string]*visitor),
		now:        time.Now,
	}
}

// allow takes a token for ip. When none is left it reports how long until
// the next one.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.sweepEvery {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idleTTL {
				delete(rl.visitors, key)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Duration(float64(time.Second) / float64(rl.limit))
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// retryAfter renders a wait as whole seconds, rounded up and at least one.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Round(time.Millisecond).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, wait := rl.allow(ip)
		if !ok {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"limiter": rl.name,
				"ip":      ip,
				"path":    c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", retryAfter(wait))
			utils.AbortWithMessage(c, http.StatusTooManyRequests, "too many requests, please wait a moment and try again")
			return
		}
		c.Next()
	}
}
