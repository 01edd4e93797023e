package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetMetrics caches a computed metrics response under a query-shape hash.
func (c *Client) SetMetrics(ctx context.Context, queryHash string, response interface{}, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("metrics:%s", queryHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set metrics cache: %w", err)
	}

	logger.Debug("Metrics cached", zap.String("query_hash", queryHash), zap.Duration("ttl", ttl))
	return nil
}

// GetMetrics loads a cached metrics response. The bool reports a hit.
func (c *Client) GetMetrics(ctx context.Context, queryHash string, response interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("metrics:%s", queryHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get metrics cache: %w", err)
	}

	err = json.Unmarshal(data, response)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Debug("Metrics cache hit", zap.String("query_hash", queryHash))
	return true, nil
}

// InvalidateMetricsCache drops every cached metrics response. Ingestion
// calls this after writing new rows so readers never see stale days.
func (c *Client) InvalidateMetricsCache(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "metrics:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Metrics cache invalidated")
	return nil
}
