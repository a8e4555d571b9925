package projection

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
)

// ExternalReadModelClient is the collaborator async projectors call: a
// global, cross-labour read model (e.g. a search index or analytics
// store) that lives outside this actor's own tables.
type ExternalReadModelClient interface {
	CreateLabourSummary(ctx context.Context, labourID, motherID string) error
	UpdateLabourSummaryPhase(ctx context.Context, labourID string, phase domain.Phase) error
	RecordLabourEvent(ctx context.Context, labourID string, sequence int64, eventType domain.EventType) error
}

// ExternalProjector is the async counterpart to the in-actor sync
// projectors: identical contract and processor loop, but
// writes go to an external store and are decoupled from command success
// since they only observe events already durably persisted.
type ExternalProjector struct {
	client ExternalReadModelClient
}

// NewExternalProjector constructs an ExternalProjector.
func NewExternalProjector(client ExternalReadModelClient) *ExternalProjector {
	return &ExternalProjector{client: client}
}

func (p *ExternalProjector) Name() string { return "external_summary" }

func (p *ExternalProjector) ProjectBatch(ctx context.Context, aggregateID string, events []eventstore.StoredEvent) error {
	for _, se := range events {
		if err := p.client.RecordLabourEvent(ctx, aggregateID, se.Sequence, se.EventType); err != nil {
			return fmt.Errorf("projection(external_summary): record event: %w", err)
		}
		switch e := se.Event.(type) {
		case domain.LabourPlanned:
			if err := p.client.CreateLabourSummary(ctx, aggregateID, e.MotherID); err != nil {
				return fmt.Errorf("projection(external_summary): create: %w", err)
			}
		case domain.LabourPhaseChanged:
			if err := p.client.UpdateLabourSummaryPhase(ctx, aggregateID, e.Phase); err != nil {
				return fmt.Errorf("projection(external_summary): phase: %w", err)
			}
		}
	}
	return nil
}
