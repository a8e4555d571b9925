package projection

import (
	"context"

	"github.com/fernlabour/labour-actor/pkg/eventstore"
)

// Projector transforms a batch of events into a read model. ProjectBatch
// must be total over the batch and idempotent per event sequence: replaying
// the same batch twice must leave the read model unchanged the second time.
type Projector interface {
	Name() string
	ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error
}
