package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkWebhookSeen records a webhook delivery and reports whether this is the
// first time the (type, transaction id) pair was seen within the TTL window
func (c *Client) MarkWebhookSeen(ctx context.Context, eventType, transactionID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("webhook:%s:%s", eventType, transactionID)
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// AcquireCheckoutLock takes a short lock on a (user, asset) pair so
// concurrent checkout calls cannot double-book while the provider call is
// in flight
func (c *Client) AcquireCheckoutLock(ctx context.Context, userID, assetID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:checkout:%s:%s", userID, assetID)
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// ReleaseCheckoutLock releases a checkout lock
func (c *Client) ReleaseCheckoutLock(ctx context.Context, userID, assetID string) error {
	key := fmt.Sprintf("lock:checkout:%s:%s", userID, assetID)
	return c.rdb.Del(ctx, key).Err()
}
