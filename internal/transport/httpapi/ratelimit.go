package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RateLimiter is a fixed-window limiter keyed by the authenticated user, or
// by remote address when no user is known.
type RateLimiter struct {
	incr     func(ctx context.Context, key string) (int64, error)
	limit    int
	prefix   string
	failOpen bool
}

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string, failOpen bool) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	ms := window.Milliseconds()
	return newRateLimiter(func(ctx context.Context, key string) (int64, error) {
		res, err := redisFixedWindowScript.Run(ctx, rdb, []string{key}, ms).Result()
		if err != nil {
			return 0, err
		}
		switch v := res.(type) {
		case int64:
			return v, nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		default:
			return 0, fmt.Errorf("unexpected redis script result type %T", res)
		}
	}, limit, prefix, failOpen)
}

func newRateLimiter(incr func(ctx context.Context, key string) (int64, error), limit int, prefix string, failOpen bool) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RateLimiter{incr: incr, limit: limit, prefix: prefix, failOpen: failOpen}
}

func (rl *RateLimiter) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, err := rl.incr(r.Context(), rl.prefix+":"+clientKey(r))
			if err != nil {
				log.Warn("redis rate limiter error", slog.Any("err", err))
				if rl.failOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "rate limiter unavailable")
				return
			}
			if count > int64(rl.limit) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if id, ok := userIDFrom(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
