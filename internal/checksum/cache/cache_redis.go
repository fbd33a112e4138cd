package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"idcheck/internal/checksum/models"
	"idcheck/pkg/platform/sentinel"
)

const keyPrefix = "idcheck:v:"

// RedisCache shares outcomes between instances. Entries expire via TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, subjectHash string) (models.Outcome, error) {
	raw, err := c.client.Get(ctx, keyPrefix+subjectHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Outcome{}, sentinel.ErrNotFound
		}
		return models.Outcome{}, fmt.Errorf("get cached outcome: %w", err)
	}
	var outcome models.Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return models.Outcome{}, fmt.Errorf("decode cached outcome: %w", err)
	}
	return outcome, nil
}

func (c *RedisCache) Set(ctx context.Context, subjectHash string, outcome models.Outcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+subjectHash, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached outcome: %w", err)
	}
	return nil
}
