package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionTokenProjector maintains the `subscription_tokens` read
// model. Kept as its own projector rather than folded into
// SubscriptionProjector so its checkpoint advances independently.
type SubscriptionTokenProjector struct {
	pool *pgxpool.Pool
}

// NewSubscriptionTokenProjector constructs a SubscriptionTokenProjector.
func NewSubscriptionTokenProjector(pool *pgxpool.Pool) *SubscriptionTokenProjector {
	return &SubscriptionTokenProjector{pool: pool}
}

func (p *SubscriptionTokenProjector) Name() string { return "subscription_token" }

func (p *SubscriptionTokenProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		switch e := se.Event.(type) {
		case domain.SubscriptionTokenSet:
			_, err := p.pool.Exec(ctx,
				`INSERT INTO subscription_tokens (labour_id, token) VALUES ($1, $2)
				 ON CONFLICT (labour_id) DO UPDATE SET token = EXCLUDED.token`,
				aggregateID, e.Token)
			if err != nil {
				return fmt.Errorf("projection(subscription_token): set: %w", err)
			}
		case domain.SubscriptionTokenInvalidated:
			if _, err := p.pool.Exec(ctx,
				`DELETE FROM subscription_tokens WHERE labour_id = $1`, aggregateID,
			); err != nil {
				return fmt.Errorf("projection(subscription_token): invalidate: %w", err)
			}
		}
	}
	return nil
}
