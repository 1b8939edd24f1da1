package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("test", time.Second, 3)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)
	}

	w := hit(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.2").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)
}

func TestRateLimiter_RetryAfterFollowsInterval(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("test", 90*time.Second, 1)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)
	w := hit(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))

	// A denied request does not push the next token further out.
	now = now.Add(30 * time.Second)
	w = hit(r, "10.0.0.1")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "1", retryAfter(0))
	assert.Equal(t, "1", retryAfter(200*time.Millisecond))
	assert.Equal(t, "2", retryAfter(1500*time.Millisecond))
	assert.Equal(t, "60", retryAfter(time.Minute))
}

func TestRateLimiter_ForgetsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("test", time.Minute, 1)
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("10.0.0.1")
	assert.True(t, ok)
	ok, wait := rl.allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, "60", retryAfter(wait))

	now = now.Add(11 * time.Minute)
	ok, _ = rl.allow("10.0.0.2")
	assert.True(t, ok)
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiter_SweepsOnInterval(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("test", time.Second, 5)
	rl.idleTTL = time.Second
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	// Idle, but the last sweep was too recent.
	now = now.Add(30 * time.Second)
	rl.allow("10.0.0.3")
	assert.Len(t, rl.visitors, 3)

	now = now.Add(31 * time.Second)
	rl.allow("10.0.0.3")
	assert.Len(t, rl.visitors, 1)
}
