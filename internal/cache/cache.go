// Package cache provides an optional Redis read cache for hot balances and
// the segments summary. The relational store stays the source of truth;
// every ledger mutation invalidates the affected balance key.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	balanceTTL = 5 * time.Minute
	summaryTTL = 10 * time.Minute

	summaryKey = "rfm:summary"
)

// Cache wraps a Redis client with loyalty-specific keys.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(addr, password string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// GetBalance returns the cached balance for a user, or ok=false on a miss.
func (c *Cache) GetBalance(ctx context.Context, userID uint) (int64, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// SetBalance stores a user's balance with a short TTL.
func (c *Cache) SetBalance(ctx context.Context, userID uint, balance int64) error {
	return c.client.Set(ctx, balanceKey(userID), balance, balanceTTL).Err()
}

// InvalidateBalance drops the cached balance after a ledger mutation.
func (c *Cache) InvalidateBalance(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, balanceKey(userID)).Err()
}

// GetSummary returns the cached segments summary JSON, or ok=false on a miss.
func (c *Cache) GetSummary(ctx context.Context, dest any) (bool, error) {
	val, err := c.client.Get(ctx, summaryKey).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetSummary stores the segments summary with a short TTL.
func (c *Cache) SetSummary(ctx context.Context, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey, data, summaryTTL).Err()
}

// InvalidateSummary drops the cached summary after a recalculation run.
func (c *Cache) InvalidateSummary(ctx context.Context) error {
	return c.client.Del(ctx, summaryKey).Err()
}

func balanceKey(userID uint) string {
	return fmt.Sprintf("balance:%d", userID)
}
