package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const rateLimitIPPrefix = "ratelimit:ip:"

type WindowResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// FixedWindow counts hits per key in aligned windows of Window length and
// allows at most Max per window.
type FixedWindow struct {
	c      *Cache
	Window time.Duration
	Max    int
	now    func() time.Time
}

func (c *Cache) FixedWindow(window time.Duration, max int) *FixedWindow {
	return &FixedWindow{c: c, Window: window, Max: max, now: time.Now}
}

func (f *FixedWindow) Allow(ctx context.Context, ip string) (WindowResult, error) {
	now := f.now()
	start := now.Truncate(f.Window)
	reset := start.Add(f.Window)
	key := rateLimitIPPrefix + hashIP(ip) + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := f.c.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, reset.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return WindowResult{}, err
	}
	n := int(incr.Val())
	return WindowResult{
		Allowed:   n <= f.Max,
		Remaining: max(0, f.Max-n),
		ResetAt:   reset,
	}, nil
}

// hashIP keeps raw client addresses out of Redis.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
