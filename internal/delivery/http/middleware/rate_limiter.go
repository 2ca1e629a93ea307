package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	rateWindow     = time.Minute
	rateSweepEvery = 5 * time.Minute
)

type window struct {
	start time.Time
	hits  int
}

// RateLimiter allows maxRequests per minute per caller. Callers are keyed by
// the identity set by Identity, falling back to the client address, so it must
// run after Identity to limit per user. Stale windows are swept until ctx ends.
func RateLimiter(ctx context.Context, maxRequests int) gin.HandlerFunc {
	var mu sync.Mutex
	windows := make(map[string]*window)

	go func() {
		ticker := time.NewTicker(rateSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mu.Lock()
				for key, w := range windows {
					if now.Sub(w.start) > 2*rateWindow {
						delete(windows, key)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if actor := ActorFrom(c); actor.ID != "" {
			key = "user:" + actor.ID
		}
		now := time.Now()

		mu.Lock()
		w, ok := windows[key]
		if !ok || now.Sub(w.start) >= rateWindow {
			w = &window{start: now}
			windows[key] = w
		}
		w.hits++
		allowed := w.hits <= maxRequests
		retry := rateWindow - now.Sub(w.start)
		mu.Unlock()

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded: " + strconv.Itoa(maxRequests) + " requests per minute",
			})
			return
		}
		c.Next()
	}
}
