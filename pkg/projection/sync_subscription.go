package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionProjector maintains the `subscriptions` read model.
type SubscriptionProjector struct {
	pool *pgxpool.Pool
}

// NewSubscriptionProjector constructs a SubscriptionProjector.
func NewSubscriptionProjector(pool *pgxpool.Pool) *SubscriptionProjector {
	return &SubscriptionProjector{pool: pool}
}

func (p *SubscriptionProjector) Name() string { return "subscription" }

func (p *SubscriptionProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		switch e := se.Event.(type) {
		case domain.SubscriberRequested:
			_, err := p.pool.Exec(ctx,
				`INSERT INTO subscriptions (id, labour_id, subscriber_id, role, status, access_level)
				 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
				e.SubscriptionID, aggregateID, e.SubscriberID, e.Role, domain.SubscriptionRequested, domain.AccessStandard)
			if err != nil {
				return fmt.Errorf("projection(subscription): insert: %w", err)
			}
		case domain.SubscriberApproved:
			if err := p.setStatus(ctx, e.SubscriptionID, domain.SubscriptionSubscribed); err != nil {
				return err
			}
		case domain.SubscriberBlocked:
			if err := p.setStatus(ctx, e.SubscriptionID, domain.SubscriptionBlocked); err != nil {
				return err
			}
		case domain.SubscriberUnblocked:
			if err := p.setStatus(ctx, e.SubscriptionID, domain.SubscriptionSubscribed); err != nil {
				return err
			}
		case domain.SubscriberRemoved:
			if err := p.setStatus(ctx, e.SubscriptionID, domain.SubscriptionRemoved); err != nil {
				return err
			}
		case domain.SubscriberUnsubscribed:
			if err := p.setStatus(ctx, e.SubscriptionID, domain.SubscriptionUnsubscribed); err != nil {
				return err
			}
		case domain.SubscriberRoleUpdated:
			if _, err := p.pool.Exec(ctx,
				`UPDATE subscriptions SET role = $2 WHERE id = $1`, e.SubscriptionID, e.Role,
			); err != nil {
				return fmt.Errorf("projection(subscription): role: %w", err)
			}
		case domain.SubscriberAccessLevelUpdated:
			if _, err := p.pool.Exec(ctx,
				`UPDATE subscriptions SET access_level = $2 WHERE id = $1`, e.SubscriptionID, e.AccessLevel,
			); err != nil {
				return fmt.Errorf("projection(subscription): access_level: %w", err)
			}
		}
	}
	return nil
}

func (p *SubscriptionProjector) setStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2 WHERE id = $1`, subscriptionID, status,
	); err != nil {
		return fmt.Errorf("projection(subscription): status: %w", err)
	}
	return nil
}
