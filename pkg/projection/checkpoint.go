// Package projection implements the sync and async projector registries:
// event-driven read-model builders advanced by independent, persistent
// checkpoints with an error-isolation policy.
package projection

import (
	"context"
	"time"
)

// CheckpointStatus mirrors the persisted ProjectionCheckpoint.status column.
type CheckpointStatus string

const (
	StatusHealthy CheckpointStatus = "Healthy"
	StatusError   CheckpointStatus = "Error"
)

// MaxProjectorErrorCount is the error_count ceiling past which a faulted
// projector is skipped rather than retried every tick.
const MaxProjectorErrorCount = 5

// Checkpoint is one projector's persisted progress against one aggregate.
type Checkpoint struct {
	AggregateID           string
	ProjectorName         string
	LastProcessedSequence int64
	LastProcessedAt       *time.Time
	UpdatedAt             time.Time
	Status                CheckpointStatus
	ErrorMessage          *string
	ErrorCount            int
}

// CheckpointStore persists projector checkpoints.
type CheckpointStore interface {
	// Load returns the checkpoint for (aggregateID, projectorName), or a
	// freshly synthesized Healthy checkpoint at sequence 0 if none exists.
	Load(ctx context.Context, aggregateID, projectorName string) (Checkpoint, error)

	// Save persists the checkpoint, overwriting any previous value.
	Save(ctx context.Context, checkpoint Checkpoint) error
}
