package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the notification pipeline.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// seenTTL bounds the dedup window. Redeliveries arrive within the broker's
// ack wait, well inside this.
const seenTTL = 24 * time.Hour

func seenKey(eventID string) string {
	return fmt.Sprintf("notifications:seen:%s", eventID)
}

// Seen reports whether the event id has already been marked processed.
// Read-only: a failed store write after a Seen check must leave the event
// eligible for redelivery.
func (c *Client) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, seenKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("exists failed: %w", err)
	}
	return n > 0, nil
}

// Mark records the event id as processed. Called only after the event is
// durably stored; a crash between the write and the mark costs one more
// redelivery, never the event.
func (c *Client) Mark(ctx context.Context, eventID string) error {
	if err := c.rdb.SetNX(ctx, seenKey(eventID), 1, seenTTL).Err(); err != nil {
		return fmt.Errorf("setnx failed: %w", err)
	}
	return nil
}
