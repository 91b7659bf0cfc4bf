package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/snake-lounge/internal/config"
)

// Client wraps a go-redis client with the key prefix of this deployment
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newClient(rdb, cfg.KeyPrefix, logger), nil
}

func newClient(rdb *redis.Client, prefix string, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, prefix: prefix, logger: logger}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks that Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ActivePlayers returns the session store backed by this client
func (c *Client) ActivePlayers() *ActivePlayerStore {
	return &ActivePlayerStore{client: c, logger: c.logger}
}

// Revocations returns the token revocation list backed by this client
func (c *Client) Revocations() *RevocationList {
	return &RevocationList{client: c}
}

func (c *Client) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}
