// Package redis bootstraps the connection behind the score cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"persona-gateway/internal/platform/config"
)

// Client wraps go-redis so callers get health checking without importing the
// driver directly.
type Client struct {
	*redis.Client
}

// New connects using the configured URL. An empty URL means the score cache
// is disabled; New returns (nil, nil) and every score is computed fresh.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	// Fail startup on an unreachable cache rather than serving with a
	// half-configured one.
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
