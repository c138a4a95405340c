package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// RiskCache keeps risk records in Redis in front of the persistent store
type RiskCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRiskCache creates a cache for the configured Redis instance
func NewRiskCache(cfg config.CacheConfig) *RiskCache {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: -1,
	})
	return &RiskCache{client: client, ttl: cfg.TTL}
}

// riskKey generates Redis key for a post's record
func (c *RiskCache) riskKey(postID string) string {
	return fmt.Sprintf("risk:%s", postID)
}

// Get returns the cached record, or nil without error on a miss
func (c *RiskCache) Get(ctx context.Context, postID string) (*models.RiskRecord, error) {
	data, err := c.client.Get(ctx, c.riskKey(postID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}

	var record models.RiskRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}
	return &record, nil
}

// Set stores a record with the configured TTL
func (c *RiskCache) Set(ctx context.Context, record models.RiskRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := c.client.Set(ctx, c.riskKey(record.PostID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (c *RiskCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (c *RiskCache) Close() error {
	return c.client.Close()
}
