package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	h "eventhub/internal/delivery/http/helpers"
)

// RateLimiter is a fixed-window request counter keyed by client IP, stored in Redis.
// When Redis is unreachable requests are let through.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter returns a limiter allowing limit requests per window for each client.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, logger: logger}
}

// Limit returns a wrapper counting requests under the given bucket name.
func (l *RateLimiter) Limit(name string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if l == nil || l.limit <= 0 {
				next(w, r)
				return
			}
			ctx := r.Context()
			key := fmt.Sprintf("ratelimit:%s:%s", name, clientIP(r))

			count, err := l.client.Incr(ctx, key).Result()
			if err != nil {
				l.logger.WarnContext(ctx, "rate limiter unavailable", "key", key, "err", err)
				next(w, r)
				return
			}
			if count == 1 {
				if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
					l.logger.WarnContext(ctx, "rate limiter expire failed", "key", key, "err", err)
				}
			}
			if count > int64(l.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeTooManyRequests, "too many requests")
				return
			}
			next(w, r)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
