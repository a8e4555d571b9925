package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContractionProjector maintains the `contractions` read model.
type ContractionProjector struct {
	pool *pgxpool.Pool
}

// NewContractionProjector constructs a ContractionProjector.
func NewContractionProjector(pool *pgxpool.Pool) *ContractionProjector {
	return &ContractionProjector{pool: pool}
}

func (p *ContractionProjector) Name() string { return "contraction" }

func (p *ContractionProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		switch e := se.Event.(type) {
		case domain.ContractionStarted:
			_, err := p.pool.Exec(ctx,
				`INSERT INTO contractions (id, labour_id, start_time) VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO NOTHING`,
				e.ContractionID, aggregateID, e.StartTime)
			if err != nil {
				return fmt.Errorf("projection(contraction): insert: %w", err)
			}
		case domain.ContractionEnded:
			if _, err := p.pool.Exec(ctx,
				`UPDATE contractions SET end_time = $2, intensity = $3 WHERE id = $1`,
				e.ContractionID, e.EndTime, e.Intensity,
			); err != nil {
				return fmt.Errorf("projection(contraction): end: %w", err)
			}
		case domain.ContractionUpdated:
			if _, err := p.pool.Exec(ctx,
				`UPDATE contractions SET start_time = $2, end_time = $3, intensity = $4 WHERE id = $1`,
				e.ContractionID, e.StartTime, e.EndTime, e.Intensity,
			); err != nil {
				return fmt.Errorf("projection(contraction): update: %w", err)
			}
		case domain.ContractionDeleted:
			if _, err := p.pool.Exec(ctx,
				`DELETE FROM contractions WHERE id = $1`, e.ContractionID,
			); err != nil {
				return fmt.Errorf("projection(contraction): delete: %w", err)
			}
		}
	}
	return nil
}
