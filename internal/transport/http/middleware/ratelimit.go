package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"project-tracker/internal/core/cache"
	resp "project-tracker/internal/transport/http/response"
)

// RateLimit is a process-wide token bucket in front of everything.
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		resp.Abort(c, http.StatusTooManyRequests, resp.MsgTooManyRequests)
	}
}

// WindowLimiter counts requests per client in fixed windows.
// *cache.FixedWindow (Redis) and *MemoryWindow implement it.
type WindowLimiter interface {
	Allow(ctx context.Context, ip string) (cache.WindowResult, error)
}

// RateLimitPerIP applies lim to c.ClientIP(). Limiter errors let the request
// through; the store being down should not take the API with it.
func RateLimitPerIP(lim WindowLimiter, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := lim.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			wait := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(wait, 1)))
			resp.Abort(c, http.StatusTooManyRequests, resp.MsgTooManyRequests)
			return
		}
		c.Next()
	}
}

// MemoryWindow is the single-process fallback for when no Redis is configured.
type MemoryWindow struct {
	Window time.Duration
	Max    int

	mu      sync.Mutex
	start   time.Time
	buckets map[string]int
	now     func() time.Time
}

func NewMemoryWindow(window time.Duration, max int) *MemoryWindow {
	return &MemoryWindow{Window: window, Max: max, buckets: map[string]int{}, now: time.Now}
}

func (m *MemoryWindow) Allow(_ context.Context, ip string) (cache.WindowResult, error) {
	now := m.now()
	start := now.Truncate(m.Window)

	m.mu.Lock()
	defer m.mu.Unlock()
	// a new window forgets every client at once, so the table never outgrows
	// one window's worth of addresses
	if !start.Equal(m.start) {
		m.start = start
		clear(m.buckets)
	}
	m.buckets[ip]++
	n := m.buckets[ip]
	return cache.WindowResult{
		Allowed:   n <= m.Max,
		Remaining: max(0, m.Max-n),
		ResetAt:   start.Add(m.Window),
	}, nil
}
