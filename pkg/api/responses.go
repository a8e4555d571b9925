package api

import (
	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
)

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// CommandResponse is returned after a successful command dispatch: the
// events the command produced, already stamped with their final sequence.
type CommandResponse struct {
	Events []EventEnvelope `json:"events"`
}

// EventEnvelope is the JSON shape of a stored event sent to HTTP/WS
// clients: the envelope fields plus the event's own type discriminator.
type EventEnvelope struct {
	Sequence  int64            `json:"sequence"`
	EventType domain.EventType `json:"event_type"`
	Event     domain.Event     `json:"event"`
	CreatedAt string           `json:"created_at"`
}

func toEventEnvelope(e eventstore.StoredEvent) EventEnvelope {
	return EventEnvelope{
		Sequence:  e.Sequence,
		EventType: e.EventType,
		Event:     e.Event,
		CreatedAt: e.CreatedAt.Format(rfc3339Milli),
	}
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

func toEventEnvelopes(events []eventstore.StoredEvent) []EventEnvelope {
	out := make([]EventEnvelope, len(events))
	for i, e := range events {
		out[i] = toEventEnvelope(e)
	}
	return out
}

// LabourResponse is the GET /labours/:id response: the queryable
// projection of aggregate state a caller's capabilities allow them to see.
type LabourResponse struct {
	ID            string               `json:"id"`
	MotherID      string               `json:"mother_id"`
	Phase         domain.Phase         `json:"phase"`
	StartTime     *string              `json:"start_time,omitempty"`
	EndTime       *string              `json:"end_time,omitempty"`
	Contractions  []domain.Contraction `json:"contractions"`
	LabourUpdates []domain.LabourUpdate `json:"labour_updates"`
	Subscriptions []domain.Subscription `json:"subscriptions"`
}

func toLabourResponse(l *domain.Labour) LabourResponse {
	resp := LabourResponse{
		ID:            l.ID,
		MotherID:      l.MotherID,
		Phase:         l.Phase,
		Contractions:  l.Contractions,
		LabourUpdates: l.LabourUpdates,
		Subscriptions: l.Subscriptions,
	}
	if l.StartTime != nil {
		s := l.StartTime.Format(rfc3339Milli)
		resp.StartTime = &s
	}
	if l.EndTime != nil {
		s := l.EndTime.Format(rfc3339Milli)
		resp.EndTime = &s
	}
	return resp
}
