package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the go-redis client with the small surface the job
// store needs.
type Client struct {
	cli    *redis.Client
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	opts := &redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	}

	cli := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cli.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.String("addr", config.Addr),
		slog.Int("db", config.DB),
	)

	return &Client{cli: cli, logger: logger}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

// SetNX sets the key only if it does not already exist.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, expiration).Result()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.cli.Del(ctx, keys...).Result()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.cli.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.cli.Keys(ctx, pattern).Result()
}

// Watch runs fn inside an optimistic WATCH/MULTI transaction over the
// given keys, retrying is the caller's responsibility.
func (c *Client) Watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	return c.cli.Watch(ctx, fn, keys...)
}

// IsNil reports whether err is the redis nil-reply error.
func IsNil(err error) bool {
	return err == redis.Nil
}

func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.cli.Close()
}
