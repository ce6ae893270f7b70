package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopcore/storefront-api/internal/config"
)

// Counter is the window-counting backend. Implemented by cache.Redis.
type Counter interface {
	CountInWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Throttler enforces per-scope, per-caller rate limits. Each scope has its
// own quota pool so abuse of one resource cannot starve another.
type Throttler struct {
	counter Counter
	scopes  map[string]config.ScopeLimit
}

func NewThrottler(counter Counter, scopes map[string]config.ScopeLimit) *Throttler {
	return &Throttler{counter: counter, scopes: scopes}
}

// Limit returns middleware enforcing the named scope. An unknown scope is a
// wiring mistake and leaves the route unthrottled.
func (t *Throttler) Limit(scope string) func(http.Handler) http.Handler {
	limit, ok := t.scopes[scope]
	return func(next http.Handler) http.Handler {
		if !ok {
			log.Warn().Str("scope", scope).Msg("throttle scope not configured, route unthrottled")
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("throttle:%s:%s", scope, callerKey(r))

			n, remaining, err := t.counter.CountInWindow(r.Context(), key, limit.Window)
			if err != nil {
				// Fail open: losing Redis should degrade limits, not availability.
				log.Warn().Err(err).Str("scope", scope).Msg("throttle counter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			if n > int64(limit.Requests) {
				retryAfter := int(remaining.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				rejectJSON(w, http.StatusTooManyRequests, "Request rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the quota owner: the authenticated user when there is
// one, the client address otherwise.
func callerKey(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return "user:" + id.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "anon:" + host
}
