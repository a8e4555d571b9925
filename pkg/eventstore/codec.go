package eventstore

import (
	"encoding/json"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// encode marshals a domain.Event to its stored JSON payload.
func encode(event domain.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("eventstore: encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

// decode unmarshals a stored payload back into the concrete domain.Event
// matching eventType. The event type registry is a compile-time switch, the
// same static-dispatch style the process manager's policy table uses.
func decode(eventType domain.EventType, data []byte) (domain.Event, error) {
	var event domain.Event
	switch eventType {
	case domain.EventLabourPlanned:
		event = &domain.LabourPlanned{}
	case domain.EventLabourBegun:
		event = &domain.LabourBegun{}
	case domain.EventLabourPhaseChanged:
		event = &domain.LabourPhaseChanged{}
	case domain.EventLabourCompleted:
		event = &domain.LabourCompleted{}
	case domain.EventLabourDeleted:
		event = &domain.LabourDeleted{}
	case domain.EventContractionStarted:
		event = &domain.ContractionStarted{}
	case domain.EventContractionEnded:
		event = &domain.ContractionEnded{}
	case domain.EventContractionUpdated:
		event = &domain.ContractionUpdated{}
	case domain.EventContractionDeleted:
		event = &domain.ContractionDeleted{}
	case domain.EventLabourUpdatePosted:
		event = &domain.LabourUpdatePosted{}
	case domain.EventSubscriberRequested:
		event = &domain.SubscriberRequested{}
	case domain.EventSubscriberApproved:
		event = &domain.SubscriberApproved{}
	case domain.EventSubscriberBlocked:
		event = &domain.SubscriberBlocked{}
	case domain.EventSubscriberUnblocked:
		event = &domain.SubscriberUnblocked{}
	case domain.EventSubscriberRemoved:
		event = &domain.SubscriberRemoved{}
	case domain.EventSubscriberUnsubscribed:
		event = &domain.SubscriberUnsubscribed{}
	case domain.EventSubscriberRoleUpdated:
		event = &domain.SubscriberRoleUpdated{}
	case domain.EventSubscriberAccessLevelSet:
		event = &domain.SubscriberAccessLevelUpdated{}
	case domain.EventLabourInviteSent:
		event = &domain.LabourInviteSent{}
	case domain.EventSubscriptionTokenSet:
		event = &domain.SubscriptionTokenSet{}
	case domain.EventSubscriptionTokenInvalid:
		event = &domain.SubscriptionTokenInvalidated{}
	default:
		return nil, fmt.Errorf("eventstore: unknown event type %q", eventType)
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("eventstore: decode %s: %w", eventType, err)
	}
	return derefEvent(event), nil
}

// derefEvent unwraps the pointer receivers decode needs for json.Unmarshal
// back into the value types domain.Event implementations actually use.
func derefEvent(event domain.Event) domain.Event {
	switch e := event.(type) {
	case *domain.LabourPlanned:
		return *e
	case *domain.LabourBegun:
		return *e
	case *domain.LabourPhaseChanged:
		return *e
	case *domain.LabourCompleted:
		return *e
	case *domain.LabourDeleted:
		return *e
	case *domain.ContractionStarted:
		return *e
	case *domain.ContractionEnded:
		return *e
	case *domain.ContractionUpdated:
		return *e
	case *domain.ContractionDeleted:
		return *e
	case *domain.LabourUpdatePosted:
		return *e
	case *domain.SubscriberRequested:
		return *e
	case *domain.SubscriberApproved:
		return *e
	case *domain.SubscriberBlocked:
		return *e
	case *domain.SubscriberUnblocked:
		return *e
	case *domain.SubscriberRemoved:
		return *e
	case *domain.SubscriberUnsubscribed:
		return *e
	case *domain.SubscriberRoleUpdated:
		return *e
	case *domain.SubscriberAccessLevelUpdated:
		return *e
	case *domain.LabourInviteSent:
		return *e
	case *domain.SubscriptionTokenSet:
		return *e
	case *domain.SubscriptionTokenInvalidated:
		return *e
	default:
		return event
	}
}
