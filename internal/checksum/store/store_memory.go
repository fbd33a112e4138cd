// Package store persists the verification ledger.
package store

import (
	"context"
	"sort"
	"sync"

	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	"idcheck/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in process memory for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.VerificationID]models.Verification
	ordered []id.VerificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[id.VerificationID]models.Verification),
	}
}

func (s *InMemoryStore) Append(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[v.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[v.ID] = *v
	s.ordered = append(s.ordered, v.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, vid id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[vid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

// ListRecent returns up to limit entries, newest first by CheckedAt. Entries
// with equal timestamps keep reverse insertion order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Verification, error) {
	s.mu.RLock()
	out := make([]*models.Verification, 0, len(s.ordered))
	for i := len(s.ordered) - 1; i >= 0; i-- {
		v := s.byID[s.ordered[i]]
		out = append(out, &v)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CheckedAt.After(out[j].CheckedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
