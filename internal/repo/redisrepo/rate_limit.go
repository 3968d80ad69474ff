package redisrepo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter interface {
	// Allow reports whether the key is within its fixed window budget.
	// Fails open: a limiter outage never blocks legitimate traffic.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type rateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) RateLimiter {
	return &rateLimiter{client: client}
}

func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Hash the key so emails and IPs are not stored in clear.
	sum := sha256.Sum256([]byte(key))
	bucket := fmt.Sprintf("rl:%x:%d", sum[:8], time.Now().Unix()/int64(window.Seconds()))

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	return count.Val() <= int64(limit), nil
}

// NopLimiter allows everything; used when redis is not configured and in tests.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}
