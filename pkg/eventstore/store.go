// Package eventstore implements the append-only, per-aggregate-sequenced
// event log that backs every labour actor.
package eventstore

import (
	"context"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// StoredEvent is the persisted envelope around a domain.Event.
type StoredEvent struct {
	Sequence     int64
	AggregateID  string
	EventType    domain.EventType
	EventVersion int
	Event        domain.Event
	CreatedAt    time.Time
	UserID       string
}

// Store is the event store contract: append is atomic and
// assigns a globally monotonic sequence per aggregate; load is
// total-ordered; events_since is capped and ascending; there are no gaps in
// sequence.
type Store interface {
	// Append persists events for aggregateID in order, assigning each the
	// next sequence number. It returns the stored envelopes in the same
	// order.
	Append(ctx context.Context, aggregateID string, userID string, events []domain.Event) ([]StoredEvent, error)

	// Load returns every event for aggregateID ordered by sequence.
	Load(ctx context.Context, aggregateID string) ([]StoredEvent, error)

	// EventsSince returns events with sequence > since, ascending, capped
	// at limit.
	EventsSince(ctx context.Context, aggregateID string, since int64, limit int) ([]StoredEvent, error)

	// MaxSequence returns the latest sequence for aggregateID, or
	// (0, false) if none exist.
	MaxSequence(ctx context.Context, aggregateID string) (int64, bool, error)
}
