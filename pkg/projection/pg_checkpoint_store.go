package projection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCheckpointStore persists checkpoints in the projection_checkpoints
// table.
type PGCheckpointStore struct {
	pool *pgxpool.Pool
}

// NewPGCheckpointStore constructs a PGCheckpointStore over an existing pool.
func NewPGCheckpointStore(pool *pgxpool.Pool) *PGCheckpointStore {
	return &PGCheckpointStore{pool: pool}
}

func (s *PGCheckpointStore) Load(ctx context.Context, aggregateID, projectorName string) (Checkpoint, error) {
	var cp Checkpoint
	cp.AggregateID = aggregateID
	cp.ProjectorName = projectorName

	err := s.pool.QueryRow(ctx,
		`SELECT last_processed_sequence, last_processed_at, updated_at, status, error_message, error_count
		 FROM projection_checkpoints WHERE aggregate_id = $1 AND projector_name = $2`,
		aggregateID, projectorName,
	).Scan(&cp.LastProcessedSequence, &cp.LastProcessedAt, &cp.UpdatedAt, &cp.Status, &cp.ErrorMessage, &cp.ErrorCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			cp.Status = StatusHealthy
			return cp, nil
		}
		return Checkpoint{}, fmt.Errorf("projection: load checkpoint: %w", err)
	}
	return cp, nil
}

func (s *PGCheckpointStore) Save(ctx context.Context, checkpoint Checkpoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projection_checkpoints
		   (aggregate_id, projector_name, last_processed_sequence, last_processed_at, updated_at, status, error_message, error_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (aggregate_id, projector_name) DO UPDATE SET
		   last_processed_sequence = EXCLUDED.last_processed_sequence,
		   last_processed_at = EXCLUDED.last_processed_at,
		   updated_at = EXCLUDED.updated_at,
		   status = EXCLUDED.status,
		   error_message = EXCLUDED.error_message,
		   error_count = EXCLUDED.error_count`,
		checkpoint.AggregateID, checkpoint.ProjectorName, checkpoint.LastProcessedSequence,
		checkpoint.LastProcessedAt, checkpoint.UpdatedAt, checkpoint.Status, checkpoint.ErrorMessage, checkpoint.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("projection: save checkpoint: %w", err)
	}
	return nil
}
