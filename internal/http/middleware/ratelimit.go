package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"ideavote/internal/auth"
	"ideavote/internal/metrics"
	"ideavote/internal/ratelimit"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Allower is the part of the limiter the middleware needs.
type Allower interface {
	Allow(ctx context.Context, class, callerKey string) (ratelimit.Decision, error)
}

// RateLimit spends one slot of class per request. Authenticated callers are
// keyed by id, anonymous ones by client IP. A limiter failure lets the
// request through.
func RateLimit(l Allower, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)

			d, err := l.Allow(r.Context(), class, key)
			if err != nil {
				log.Warn().Err(err).Str("class", class).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				metrics.RateLimited.WithLabelValues(class).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message":     "Too many requests, please try again later.",
					"retry_after": d.RetryAfterSeconds,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if c, ok := auth.CallerFromContext(r.Context()); ok && c.ID != "" {
		return "user:" + c.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
