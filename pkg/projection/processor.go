package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernlabour/labour-actor/pkg/eventstore"
)

// Processor drives a fixed registry of projectors through the load-
// checkpoint / fetch-since / project-batch / advance-or-fault loop. The
// sync and async processors share this implementation; only their
// projector sets differ, wired by the caller.
type Processor struct {
	projectors  []Projector
	checkpoints CheckpointStore
	batchSize   int
}

// NewProcessor builds a processor over a name-keyed registry created once
// at actor construction. Iteration order does not affect correctness
// because each projector's checkpoint is independent.
func NewProcessor(projectors []Projector, checkpoints CheckpointStore, batchSize int) *Processor {
	return &Processor{projectors: projectors, checkpoints: checkpoints, batchSize: batchSize}
}

// Run processes every projector once against aggregateID's event store and
// returns an aggregated error if any projector failed. A single failing
// projector never prevents the others from advancing.
func (p *Processor) Run(ctx context.Context, aggregateID string, store eventstore.Store) error {
	var errs []error
	for _, projector := range p.projectors {
		if err := p.runOne(ctx, aggregateID, store, projector); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) runOne(ctx context.Context, aggregateID string, store eventstore.Store, projector Projector) error {
	checkpoint, err := p.checkpoints.Load(ctx, aggregateID, projector.Name())
	if err != nil {
		return fmt.Errorf("projection: load checkpoint %s: %w", projector.Name(), err)
	}

	if checkpoint.Status == StatusError && checkpoint.ErrorCount >= MaxProjectorErrorCount {
		slog.Warn("projector skipped: error budget exhausted",
			"projector", projector.Name(), "aggregate_id", aggregateID, "error_count", checkpoint.ErrorCount)
		return nil
	}

	events, err := store.EventsSince(ctx, aggregateID, checkpoint.LastProcessedSequence, p.batchSize)
	if err != nil {
		return fmt.Errorf("projection: events_since %s: %w", projector.Name(), err)
	}
	if len(events) == 0 {
		return nil
	}

	if err := projector.ProjectBatch(ctx, aggregateID, events); err != nil {
		msg := err.Error()
		checkpoint.Status = StatusError
		checkpoint.ErrorCount++
		checkpoint.ErrorMessage = &msg
		checkpoint.UpdatedAt = time.Now().UTC()
		if saveErr := p.checkpoints.Save(ctx, checkpoint); saveErr != nil {
			return fmt.Errorf("projection: persist error checkpoint %s: %w (after project_batch error: %v)",
				projector.Name(), saveErr, err)
		}
		return fmt.Errorf("projection: %s: %w", projector.Name(), err)
	}

	last := events[len(events)-1]
	checkpoint.LastProcessedSequence = last.Sequence
	checkpoint.LastProcessedAt = &last.CreatedAt
	checkpoint.Status = StatusHealthy
	checkpoint.ErrorCount = 0
	checkpoint.ErrorMessage = nil
	checkpoint.UpdatedAt = time.Now().UTC()
	if err := p.checkpoints.Save(ctx, checkpoint); err != nil {
		return fmt.Errorf("projection: persist checkpoint %s: %w", projector.Name(), err)
	}
	return nil
}

// Watermark returns the minimum checkpoint sequence across non-faulted
// projectors, the boundary before which all projections are complete.
// Faulted projectors (Error with exhausted error budget) are excluded so
// one stuck projector doesn't freeze broadcast forever; with no projector
// left to wait for, the watermark is the log head.
func (p *Processor) Watermark(ctx context.Context, aggregateID string, store eventstore.Store) (int64, error) {
	var (
		min     int64 = -1
		anySeen bool
	)
	for _, projector := range p.projectors {
		checkpoint, err := p.checkpoints.Load(ctx, aggregateID, projector.Name())
		if err != nil {
			return 0, fmt.Errorf("projection: load checkpoint %s: %w", projector.Name(), err)
		}
		if checkpoint.Status == StatusError && checkpoint.ErrorCount >= MaxProjectorErrorCount {
			continue
		}
		if !anySeen || checkpoint.LastProcessedSequence < min {
			min = checkpoint.LastProcessedSequence
		}
		anySeen = true
	}
	if !anySeen {
		seq, _, err := store.MaxSequence(ctx, aggregateID)
		if err != nil {
			return 0, fmt.Errorf("projection: watermark max sequence: %w", err)
		}
		return seq, nil
	}
	return min, nil
}

// HasUnprocessedEvents reports whether events exist past the watermark.
func (p *Processor) HasUnprocessedEvents(ctx context.Context, aggregateID string, store eventstore.Store) (bool, error) {
	watermark, err := p.Watermark(ctx, aggregateID, store)
	if err != nil {
		return false, err
	}
	events, err := store.EventsSince(ctx, aggregateID, watermark, 1)
	if err != nil {
		return false, fmt.Errorf("projection: has_unprocessed_events: %w", err)
	}
	return len(events) > 0, nil
}
