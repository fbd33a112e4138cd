package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "idcheck/pkg/platform/audit"
)

type entry struct {
	event     audit.Event
	outbox    audit.OutboxEntry
	published bool
}

// InMemoryStore keeps audit events and their outbox state in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	payload, err := json.Marshal(audit.PayloadOf(event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{
		event: event,
		outbox: audit.OutboxEntry{
			ID:          uuid.New(),
			EventType:   event.Action,
			AggregateID: audit.AggregateID(event),
			Payload:     payload,
			CreatedAt:   event.Timestamp,
		},
	})
	return nil
}

// ListRecent returns up to limit events, most recent first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]audit.Event, 0, len(s.entries))
	for _, e := range s.entries {
		events = append(events, e.event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// PendingOutbox returns unpublished entries in insertion order.
func (s *InMemoryStore) PendingOutbox(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.OutboxEntry
	for _, e := range s.entries {
		if e.published {
			continue
		}
		out = append(out, e.outbox)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if _, ok := want[e.outbox.ID]; ok {
			e.published = true
		}
	}
	return nil
}
