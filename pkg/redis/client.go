package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskhub/auth-service/config"
	"github.com/taskhub/auth-service/pkg/logger"
	"go.uber.org/zap"
)

// Client wraps go-redis. A disabled client is valid and reports
// IsEnabled() == false so callers can fall back to in-process behavior.
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// NewDisabledClient returns a client that is valid but not backed by a
// connection. Callers checking IsEnabled fall back to in-process behavior.
func NewDisabledClient() *Client {
	return &Client{enabled: false}
}

// NewClient connects to Redis when cfg.Redis.Enabled is set; otherwise it
// returns a disabled client without touching the network.
func NewClient(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return NewDisabledClient(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Database,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	client := &Client{rdb: rdb, enabled: true}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logger.GetLogger().Error("Failed to connect to Redis",
			zap.String("address", cfg.RedisAddress()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.GetLogger().Info("Successfully connected to Redis",
		zap.String("address", cfg.RedisAddress()),
		zap.Int("database", cfg.Redis.Database),
	)

	return client, nil
}

// IsEnabled reports whether the client is backed by a live connection
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.IsEnabled() {
		return fmt.Errorf("redis is disabled")
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	return c.rdb.Close()
}

// IncrWithTTL increments a counter key, setting its expiry on first use.
// Used by the rate limiter as a fixed-window counter shared across
// processes.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !c.IsEnabled() {
		return 0, fmt.Errorf("redis is disabled")
	}

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the window anchored to the first request
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val(), nil
}

// TTL returns the remaining lifetime of a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !c.IsEnabled() {
		return 0, fmt.Errorf("redis is disabled")
	}
	return c.rdb.TTL(ctx, key).Result()
}
