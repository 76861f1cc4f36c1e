package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hodlisma/hodlisma-engine/pkg/config"
	"github.com/hodlisma/hodlisma-engine/pkg/retry"
)

const redisDialTimeout = 5 * time.Second

// NewRedisClient connects to the audit fan-out Redis. It returns nil, nil
// when Redis is not configured, and gives a booting Redis a few retries
// before failing.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
		ClientName:  defaultApplicationName,
	})

	ping := func() error { return client.Ping(ctx).Err() }
	if err := retry.Do(ctx, retry.DefaultConfig(), ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
