package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/pkg/logger"
)

// Client stores classifier verdicts so that repeated inputs are not sent to
// the inference endpoint again across runs and processes.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", ttl))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	err = c.client.Set(ctx, key, data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set verdict cache: %w", err)
	}

	logger.Debug("Verdict cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) Lookup(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get verdict cache: %w", err)
	}

	err = json.Unmarshal(data, dst)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}

	logger.Debug("Verdict cache hit", zap.String("key", key))
	return true, nil
}

// InvalidateVerdicts deletes every stored verdict and returns how many keys
// were removed.
func (c *Client) InvalidateVerdicts(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, "verdict:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Verdict cache invalidated", zap.Int("removed", removed))
	return removed, nil
}
