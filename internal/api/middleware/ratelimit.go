package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// rateLimitPrefix namespaces limiter keys in a shared store.
const rateLimitPrefix = "firekeeper:ratelimit"

// NewRateLimitStore returns a Redis-backed store when redisURL is set, so that every
// instance of the function shares one budget, and an in-process store otherwise.
// The returned close function releases the Redis connection.
func NewRateLimitStore(ctx context.Context, redisURL string) (limiter.Store, func() error, error) {
	if redisURL == "" {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix}), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, client.Close, nil
}

// NewRateLimiter creates a Gin middleware allowing requests per period for each client IP.
// A nil store uses an in-process memory store.
func NewRateLimiter(requests int64, period time.Duration, store limiter.Store) (gin.HandlerFunc, error) {
	if requests <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d: must be positive", requests)
	}
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %v: must be positive", period)
	}
	if store == nil {
		store = memory.NewStore()
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		}),
	), nil
}
