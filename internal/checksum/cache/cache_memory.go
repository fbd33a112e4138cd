// Package cache holds verification outcomes keyed by subject hash.
package cache

import (
	"context"
	"sync"
	"time"

	"idcheck/internal/checksum/models"
	"idcheck/pkg/platform/sentinel"
)

type cachedOutcome struct {
	outcome  models.Outcome
	storedAt time.Time
}

// InMemoryCache provides an in-memory outcome cache with TTL expiration.
type InMemoryCache struct {
	mu       sync.RWMutex
	outcomes map[string]cachedOutcome
	ttl      time.Duration
	now      func() time.Time
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		outcomes: make(map[string]cachedOutcome),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, subjectHash string) (models.Outcome, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cached, ok := c.outcomes[subjectHash]; ok {
		if c.now().Sub(cached.storedAt) < c.ttl {
			return cached.outcome, nil
		}
	}
	return models.Outcome{}, sentinel.ErrNotFound
}

func (c *InMemoryCache) Set(_ context.Context, subjectHash string, outcome models.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[subjectHash] = cachedOutcome{outcome: outcome, storedAt: c.now()}
	return nil
}
