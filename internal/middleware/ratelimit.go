package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Bidon15/printspool/internal/database"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
)

// RateLimitConfig defines admin API rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// DefaultRateLimitConfig returns sensible defaults for the admin API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 300,
		BurstSize:         60,
	}
}

// RateLimit returns a fixed-window rate limiting middleware backed by
// Redis. The window key is the bearer token's principal when present,
// otherwise the caller's IP. A Redis failure admits the request; the
// wire-side token bucket remains the authoritative limiter for job
// submission.
func RateLimit(redis *database.Redis, cfg RateLimitConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("ratelimit:%s", principalKey(r))
			window := time.Minute

			count, err := redis.IncrWithExpire(r.Context(), key, window)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			limit := cfg.RequestsPerMinute
			remaining := limit - int(count)
			if remaining < 0 {
				remaining = 0
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

			if int(count) > limit+cfg.BurstSize {
				w.Header().Set("Retry-After", "60")
				response.Error(w, brokererrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// principalKey buckets requests by verified principal when Auth ran
// earlier in the chain, by raw token prefix when it did not, and by IP as
// the last resort.
func principalKey(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil {
		return "principal:" + claims.ClientID
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		if len(token) > 20 {
			token = token[:20]
		}
		return "token:" + token
	}
	return "ip:" + realIP(r)
}

// realIP extracts the client IP, honoring proxy headers.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	return r.RemoteAddr
}
