package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LabourUpdateProjector maintains the `labour_updates` read model. The
// command processor stamps update IDs before append; if a stored event
// still carries a blank ID, a sequence-derived one keeps replays
// idempotent per sequence rather than per ID.
type LabourUpdateProjector struct {
	pool *pgxpool.Pool
}

// NewLabourUpdateProjector constructs a LabourUpdateProjector.
func NewLabourUpdateProjector(pool *pgxpool.Pool) *LabourUpdateProjector {
	return &LabourUpdateProjector{pool: pool}
}

func (p *LabourUpdateProjector) Name() string { return "labour_update" }

func (p *LabourUpdateProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		e, ok := se.Event.(domain.LabourUpdatePosted)
		if !ok {
			continue
		}
		id := e.UpdateID
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", aggregateID, se.Sequence))).String()
		}
		_, err := p.pool.Exec(ctx,
			`INSERT INTO labour_updates (id, labour_id, type, message, sent_time, application_generated)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			id, aggregateID, e.Type, e.Message, e.SentTime, e.ApplicationGenerated)
		if err != nil {
			return fmt.Errorf("projection(labour_update): insert: %w", err)
		}
	}
	return nil
}
