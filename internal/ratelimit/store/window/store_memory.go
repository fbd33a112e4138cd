// Package window stores fixed-window request counters.
package window

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many increments pass between expired-key sweeps.
const sweepEvery = 1024

type counter struct {
	count     int
	expiresAt time.Time
}

// InMemoryStore keeps counters in process memory. It backs single-instance
// deployments and serves as the fallback while Redis is unavailable.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
	ops      int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// WithClock overrides the time source used for expiry.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

// Increment adds one to key and returns the new count. The key expires
// window after its first increment.
func (s *InMemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ops++
	if s.ops%sweepEvery == 0 {
		s.sweep(now)
	}

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Len returns the number of live counters.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.counters)
}

// sweep must be called with s.mu held.
func (s *InMemoryStore) sweep(now time.Time) {
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}
}
