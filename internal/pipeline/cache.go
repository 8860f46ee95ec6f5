package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache mirrors the most recent result row per city into Redis so the
// dashboard can read it without touching Postgres. Strictly best-effort: a
// cache failure never fails the run.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

func latestKey(city string) string {
	return "aqi:latest:" + strings.ToLower(city)
}

// StoreLatest writes the serialized row under aqi:latest:<city>.
func (c *ResultCache) StoreLatest(ctx context.Context, city string, row map[string]any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal result row: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(city), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result row: %w", err)
	}
	return nil
}
