package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// MemoryStore is an in-process Store used by tests that don't need
// Postgres. It honors the same append/load/events_since/max_sequence
// contract as PGStore.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]StoredEvent
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]StoredEvent)}
}

func (s *MemoryStore) Append(_ context.Context, aggregateID, userID string, events []domain.Event) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.events[aggregateID]
	var maxSeq int64
	if len(existing) > 0 {
		maxSeq = existing[len(existing)-1].Sequence
	}

	now := time.Now().UTC()
	stored := make([]StoredEvent, 0, len(events))
	for i, event := range events {
		stored = append(stored, StoredEvent{
			Sequence:     maxSeq + int64(i) + 1,
			AggregateID:  aggregateID,
			EventType:    event.EventType(),
			EventVersion: 1,
			Event:        event,
			CreatedAt:    now,
			UserID:       userID,
		})
	}
	s.events[aggregateID] = append(existing, stored...)
	return stored, nil
}

func (s *MemoryStore) Load(_ context.Context, aggregateID string) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredEvent, len(s.events[aggregateID]))
	copy(out, s.events[aggregateID])
	return out, nil
}

func (s *MemoryStore) EventsSince(_ context.Context, aggregateID string, since int64, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredEvent
	for _, e := range s.events[aggregateID] {
		if e.Sequence > since {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MaxSequence(_ context.Context, aggregateID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[aggregateID]
	if len(events) == 0 {
		return 0, false, nil
	}
	return events[len(events)-1].Sequence, true, nil
}
