// ratelimit.go implements a per-IP token bucket limiter on top of
// golang.org/x/time/rate. Applied to the create routes and the live view
// keystroke routes.
package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
)

// limiterIdleTTL is how long an IP's bucket is kept after its last request.
const limiterIdleTTL = 10 * time.Minute

// rateLimitEntry holds the bucket for a single IP.
type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns middleware that allows each IP perSecond requests on
// average with bursts of up to burst. Returns 429 when exceeded. Idle buckets
// are swept lazily on later requests, so no background goroutine is needed.
func RateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	var (
		mu        sync.Mutex
		entries   = make(map[string]*rateLimitEntry)
		lastSweep = time.Now()
	)
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > limiterIdleTTL {
				for key, entry := range entries {
					if now.Sub(entry.lastSeen) > limiterIdleTTL {
						delete(entries, key)
					}
				}
				lastSweep = now
			}

			entry, exists := entries[ip]
			if !exists {
				entry = &rateLimitEntry{limiter: rate.NewLimiter(limit, burst)}
				entries[ip] = entry
			}
			entry.lastSeen = now
			allowed := entry.limiter.AllowN(now, 1)
			mu.Unlock()

			if !allowed {
				return apperror.NewTooManyRequests("Rate limit exceeded. Please try again later.")
			}
			return next(c)
		}
	}
}
