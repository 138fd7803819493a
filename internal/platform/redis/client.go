// Package redis owns the shared go-redis client and its key namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"crossledger/internal/platform/config"
)

// Client is a go-redis client whose keys live under one prefix.
type Client struct {
	*redis.Client
	prefix string
}

// New dials cfg.URL with the configured pool limits and pings once.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is empty")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := Wrap(redis.NewClient(opts), cfg.KeyPrefix)
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Wrap adopts an already connected client.
func Wrap(client *redis.Client, prefix string) *Client {
	return &Client{Client: client, prefix: prefix}
}

// Key joins parts under the prefix: "prefix:a:b".
func (c *Client) Key(parts ...string) string {
	if c.prefix != "" {
		parts = append([]string{c.prefix}, parts...)
	}
	return strings.Join(parts, ":")
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
