package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GlebRadaev/walletledger/pkg/utils"
)

const (
	keyPrefix     = "rl:login:"
	defaultPerMin = 5
	window        = time.Minute
)

// NewRedisClient parses the URI and pings the server.
func NewRedisClient(ctx context.Context, uri string) (*redis.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("redis uri is required")
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// LoginRateLimit caps requests per client IP per minute. A nil client turns it
// into a no-op and Redis errors let the request through.
func LoginRateLimit(cache *redis.Client, maxPerMin int) func(http.Handler) http.Handler {
	if maxPerMin <= 0 {
		maxPerMin = defaultPerMin
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cache == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := keyPrefix + clientIP(r)
			cnt, err := cache.Incr(r.Context(), key).Result()
			if err != nil {
				zap.L().Warn("Login rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if cnt == 1 {
				cache.Expire(r.Context(), key, window)
			}
			if cnt > int64(maxPerMin) {
				w.Header().Set("Retry-After", "60")
				utils.RespondWithError(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
