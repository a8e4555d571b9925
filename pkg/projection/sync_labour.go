package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LabourProjector maintains the `labours` read-model row: phase,
// start_time, end_time.
type LabourProjector struct {
	pool *pgxpool.Pool
}

// NewLabourProjector constructs a LabourProjector.
func NewLabourProjector(pool *pgxpool.Pool) *LabourProjector {
	return &LabourProjector{pool: pool}
}

func (p *LabourProjector) Name() string { return "labour" }

func (p *LabourProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		switch e := se.Event.(type) {
		case domain.LabourPlanned:
			_, err := p.pool.Exec(ctx,
				`INSERT INTO labours (id, mother_id, phase) VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO NOTHING`,
				aggregateID, e.MotherID, domain.PhasePlanned)
			if err != nil {
				return fmt.Errorf("projection(labour): insert: %w", err)
			}
		case domain.LabourPhaseChanged:
			if _, err := p.pool.Exec(ctx,
				`UPDATE labours SET phase = $2 WHERE id = $1`, aggregateID, e.Phase,
			); err != nil {
				return fmt.Errorf("projection(labour): phase: %w", err)
			}
		case domain.LabourBegun:
			if _, err := p.pool.Exec(ctx,
				`UPDATE labours SET start_time = $2 WHERE id = $1`, aggregateID, e.StartTime,
			); err != nil {
				return fmt.Errorf("projection(labour): begun: %w", err)
			}
		case domain.LabourCompleted:
			if _, err := p.pool.Exec(ctx,
				`UPDATE labours SET end_time = $2 WHERE id = $1`, aggregateID, e.EndTime,
			); err != nil {
				return fmt.Errorf("projection(labour): completed: %w", err)
			}
		case domain.LabourDeleted:
			// Cascades to contractions, labour_updates, subscriptions, and
			// subscription_tokens via their foreign keys.
			if _, err := p.pool.Exec(ctx,
				`DELETE FROM labours WHERE id = $1`, aggregateID,
			); err != nil {
				return fmt.Errorf("projection(labour): deleted: %w", err)
			}
		}
	}
	return nil
}
