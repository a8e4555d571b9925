package domain

import (
	"fmt"
	"time"
)

// FromEvents rehydrates a Labour from its event log. It returns
// (nil, nil) if events is empty, and an error if the first event is not
// LabourPlanned. Otherwise it builds initial state from the first event and
// folds the rest via Apply.
func FromEvents(events []Event) (*Labour, error) {
	if len(events) == 0 {
		return nil, nil
	}
	planned, ok := events[0].(LabourPlanned)
	if !ok {
		return nil, fmt.Errorf("domain: first event must be LabourPlanned, got %T", events[0])
	}
	l := &Labour{
		ID:       planned.LabourID,
		MotherID: planned.MotherID,
		Phase:    PhasePlanned,
	}
	for _, e := range events[1:] {
		l.Apply(e)
	}
	return l, nil
}

// Apply folds a single event into the aggregate. It is pure and total:
// each variant mutates only the fields it owns; unrecognized or irrelevant
// variants are no-ops.
func (l *Labour) Apply(event Event) {
	switch e := event.(type) {
	case LabourPlanned:
		l.ID = e.LabourID
		l.MotherID = e.MotherID
		l.Phase = PhasePlanned
	case LabourBegun:
		t := e.StartTime
		l.StartTime = &t
	case LabourPhaseChanged:
		l.Phase = e.Phase
	case LabourCompleted:
		t := e.EndTime
		l.EndTime = &t
	case LabourDeleted:
		l.Deleted = true
	case ContractionStarted:
		l.Contractions = append(l.Contractions, Contraction{
			ID:        e.ContractionID,
			LabourID:  l.ID,
			StartTime: e.StartTime,
		})
	case ContractionEnded:
		if c := l.FindContraction(e.ContractionID); c != nil {
			t := e.EndTime
			c.EndTime = &t
			c.Intensity = e.Intensity
		}
	case ContractionUpdated:
		if c := l.FindContraction(e.ContractionID); c != nil {
			c.StartTime = e.StartTime
			c.EndTime = e.EndTime
			c.Intensity = e.Intensity
		}
	case ContractionDeleted:
		for i := range l.Contractions {
			if l.Contractions[i].ID == e.ContractionID {
				l.Contractions = append(l.Contractions[:i], l.Contractions[i+1:]...)
				break
			}
		}
	case LabourUpdatePosted:
		l.LabourUpdates = append(l.LabourUpdates, LabourUpdate{
			ID:                   e.UpdateID,
			Type:                 e.Type,
			Message:              e.Message,
			SentTime:             e.SentTime,
			ApplicationGenerated: e.ApplicationGenerated,
		})
	case SubscriberRequested:
		l.Subscriptions = append(l.Subscriptions, Subscription{
			ID:           e.SubscriptionID,
			LabourID:     l.ID,
			SubscriberID: e.SubscriberID,
			Role:         e.Role,
			Status:       SubscriptionRequested,
			AccessLevel:  AccessStandard,
		})
	case SubscriberApproved:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Status = SubscriptionSubscribed
		}
	case SubscriberBlocked:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Status = SubscriptionBlocked
		}
	case SubscriberUnblocked:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Status = SubscriptionSubscribed
		}
	case SubscriberRemoved:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Status = SubscriptionRemoved
		}
	case SubscriberUnsubscribed:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Status = SubscriptionUnsubscribed
		}
	case SubscriberRoleUpdated:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.Role = e.Role
		}
	case SubscriberAccessLevelUpdated:
		if s := l.FindSubscription(e.SubscriptionID); s != nil {
			s.AccessLevel = e.AccessLevel
		}
	case LabourInviteSent:
		// No aggregate-owned field; recorded for projection/process-manager
		// replay only.
	case SubscriptionTokenSet:
		l.SubscriptionToken = &SubscriptionToken{Value: e.Token}
	case SubscriptionTokenInvalidated:
		l.SubscriptionToken = nil
	}
}

// HandleCommand validates cmd against state (which may be nil for
// PlanLabour) and returns the events it would emit, or an error. It never
// mutates state; the caller folds the returned events back via Apply.
func HandleCommand(state *Labour, cmd Command, thresholds PhaseThresholds) ([]Event, error) {
	if state != nil && state.Deleted {
		if cmd.CommandType() == CmdPlanLabour {
			return nil, NewInvalidCommandError("labour already planned")
		}
		return nil, ErrNotFound
	}

	switch c := cmd.(type) {
	case PlanLabourCmd:
		if state != nil {
			return nil, NewInvalidCommandError("labour already planned")
		}
		return []Event{
			LabourPlanned{LabourID: c.LabourID, MotherID: c.MotherID, FirstLabour: c.FirstLabour, DueDate: c.DueDate},
			LabourPhaseChanged{Phase: PhasePlanned},
		}, nil

	case BeginLabourCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.Phase != PhasePlanned {
			return nil, NewInvalidStateTransitionError(string(state.Phase), string(PhaseEarly))
		}
		return beginLabourEvents(c.StartTime), nil

	case StartContractionCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.Phase == PhaseComplete {
			return nil, NewInvalidCommandError("labour is complete")
		}
		if state.FindActiveContraction() != nil {
			return nil, NewInvalidCommandError("a contraction is already active")
		}
		if state.FindContraction(c.ContractionID) != nil {
			return nil, NewInvalidCommandError("contraction id already in use")
		}
		events := []Event{}
		if state.Phase == PhasePlanned {
			events = append(events,
				LabourBegun{StartTime: c.StartTime},
				LabourPhaseChanged{Phase: PhaseEarly},
			)
		}
		events = append(events, ContractionStarted{ContractionID: c.ContractionID, StartTime: c.StartTime})
		return events, nil

	case EndContractionCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		existing := state.FindContraction(c.ContractionID)
		if existing == nil {
			return nil, NewInvalidCommandError("contraction not found")
		}
		if !existing.Active() {
			return nil, NewInvalidCommandError("contraction is not active")
		}
		events := []Event{
			ContractionEnded{ContractionID: c.ContractionID, EndTime: c.EndTime, Intensity: c.Intensity},
		}
		projected := cloneLabour(state)
		projected.Apply(events[0])
		if upgrade := evaluatePhase(projected.Contractions, thresholds); upgrade != "" && upgrade.After(state.Phase) {
			events = append(events, LabourPhaseChanged{Phase: upgrade})
		}
		return events, nil

	case UpdateContractionCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		existing := state.FindContraction(c.ContractionID)
		if existing == nil {
			return nil, NewInvalidCommandError("contraction not found")
		}
		if existing.Active() {
			return nil, NewInvalidCommandError("cannot mutate an active contraction")
		}
		if state.HasOverlappingContractions(c.ContractionID, c.StartTime, c.EndTime) {
			return nil, NewValidationError("contraction window overlaps an existing contraction")
		}
		events := []Event{
			ContractionUpdated{ContractionID: c.ContractionID, StartTime: c.StartTime, EndTime: c.EndTime, Intensity: c.Intensity},
		}
		projected := cloneLabour(state)
		projected.Apply(events[0])
		if upgrade := evaluatePhase(projected.Contractions, thresholds); upgrade != "" && upgrade.After(state.Phase) {
			events = append(events, LabourPhaseChanged{Phase: upgrade})
		}
		return events, nil

	case DeleteContractionCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.Phase == PhaseComplete {
			return nil, NewInvalidCommandError("labour is complete")
		}
		existing := state.FindContraction(c.ContractionID)
		if existing == nil {
			return nil, NewInvalidCommandError("contraction not found")
		}
		if existing.Active() {
			return nil, NewInvalidCommandError("cannot delete an active contraction")
		}
		return []Event{ContractionDeleted{ContractionID: c.ContractionID}}, nil

	case CompleteLabourCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.FindActiveContraction() != nil {
			return nil, NewInvalidCommandError("cannot complete labour with an active contraction")
		}
		return []Event{
			LabourCompleted{EndTime: c.EndTime, Notes: c.Notes},
			LabourPhaseChanged{Phase: PhaseComplete},
		}, nil

	case DeleteLabourCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		return []Event{LabourDeleted{}}, nil

	case PostLabourUpdateCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if c.Type == UpdateAnnouncement && !state.CanSendAnnouncement(c.SentTime, time.Duration(c.CooldownSeconds)*time.Second) {
			return nil, NewInvalidCommandError("announcement cooldown has not elapsed")
		}
		return []Event{LabourUpdatePosted{
			UpdateID:             c.UpdateID,
			Type:                 c.Type,
			Message:              c.Message,
			SentTime:             c.SentTime,
			ApplicationGenerated: c.ApplicationGenerated,
		}}, nil

	case RequestAccessCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.SubscriptionToken == nil || state.SubscriptionToken.Value != c.Token {
			return nil, NewInvalidCommandError("subscription token does not match")
		}
		if state.FindSubscriptionFromSubscriberID(c.SubscriberID) != nil {
			return nil, NewInvalidCommandError("subscriber already has a subscription")
		}
		role := c.Role
		if role == "" {
			role = RoleLovedOne
		}
		// SubscriptionID stays blank here: HandleCommand is deterministic,
		// so the command processor stamps the new subscription's identity
		// via StampIdentities before appending.
		return []Event{SubscriberRequested{
			SubscriberID: c.SubscriberID,
			Role:         role,
		}}, nil

	case ApproveSubscriberCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		if s.Status != SubscriptionRequested {
			return nil, NewInvalidStateTransitionError(string(s.Status), string(SubscriptionSubscribed))
		}
		return []Event{SubscriberApproved{SubscriptionID: c.SubscriptionID}}, nil

	case BlockSubscriberCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		if s.Status == SubscriptionBlocked {
			return nil, NewInvalidStateTransitionError(string(s.Status), string(SubscriptionBlocked))
		}
		return []Event{SubscriberBlocked{SubscriptionID: c.SubscriptionID}}, nil

	case UnblockSubscriberCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		if s.Status != SubscriptionBlocked {
			return nil, NewInvalidStateTransitionError(string(s.Status), string(SubscriptionSubscribed))
		}
		return []Event{SubscriberUnblocked{SubscriptionID: c.SubscriptionID}}, nil

	case RemoveSubscriberCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		if s.Status == SubscriptionBlocked || s.Status == SubscriptionRemoved {
			return nil, NewInvalidStateTransitionError(string(s.Status), string(SubscriptionRemoved))
		}
		return []Event{SubscriberRemoved{SubscriptionID: c.SubscriptionID}}, nil

	case UnsubscribeCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		return []Event{SubscriberUnsubscribed{SubscriptionID: c.SubscriptionID}}, nil

	case UpdateSubscriberRoleCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		if s.Role == c.Role {
			return nil, NewInvalidCommandError("role unchanged")
		}
		return []Event{SubscriberRoleUpdated{SubscriptionID: c.SubscriptionID, Role: c.Role}}, nil

	case UpdateAccessLevelCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		s := state.FindSubscription(c.SubscriptionID)
		if s == nil {
			return nil, NewInvalidCommandError("subscription not found")
		}
		return []Event{SubscriberAccessLevelUpdated{SubscriptionID: c.SubscriptionID, AccessLevel: c.AccessLevel}}, nil

	case SendInviteCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		return []Event{LabourInviteSent{Email: c.Email}}, nil

	case SetSubscriptionTokenCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.SubscriptionToken != nil && state.SubscriptionToken.Value == c.Token {
			return []Event{}, nil
		}
		return []Event{SubscriptionTokenSet{Token: c.Token}}, nil

	case InvalidateSubscriptionTokenCmd:
		if state == nil {
			return nil, ErrNotFound
		}
		if state.SubscriptionToken == nil {
			return []Event{}, nil
		}
		return []Event{SubscriptionTokenInvalidated{}}, nil

	default:
		return nil, NewInvalidCommandError(fmt.Sprintf("unrecognized command %T", cmd))
	}
}

// beginLabourEvents builds the LabourBegun/EARLY/marker-note triple
// BeginLabour emits. UpdateID is left blank: the command processor stamps a
// fresh ID on any identity field left blank before appending, the same way
// it assigns the event sequence.
func beginLabourEvents(startTime time.Time) []Event {
	return []Event{
		LabourBegun{StartTime: startTime},
		LabourPhaseChanged{Phase: PhaseEarly},
		LabourUpdatePosted{
			Type:                 UpdatePrivateNote,
			Message:              "labour_begun",
			SentTime:             startTime,
			ApplicationGenerated: true,
		},
	}
}

// StampIdentities fills the identity fields HandleCommand deliberately left
// blank (the begin-labour marker note's UpdateID, a new subscription's ID)
// using newID. The command processor calls this once per handled command,
// just before append, so folded state and stored events always carry full
// identities while HandleCommand itself stays deterministic.
func StampIdentities(events []Event, newID func() string) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		switch typed := e.(type) {
		case LabourUpdatePosted:
			if typed.UpdateID == "" {
				typed.UpdateID = newID()
			}
			out[i] = typed
		case SubscriberRequested:
			if typed.SubscriptionID == "" {
				typed.SubscriptionID = newID()
			}
			out[i] = typed
		default:
			out[i] = e
		}
	}
	return out
}

// cloneLabour makes a shallow-deep copy sufficient for speculative Apply
// during phase re-evaluation: slices are copied so mutating the clone's
// elements never touches the real state.
func cloneLabour(l *Labour) *Labour {
	clone := *l
	clone.Contractions = append([]Contraction(nil), l.Contractions...)
	clone.LabourUpdates = append([]LabourUpdate(nil), l.LabourUpdates...)
	clone.Subscriptions = append([]Subscription(nil), l.Subscriptions...)
	return &clone
}

// Clone returns a deep-enough copy of l safe to hand to a caller outside
// the actor's lock, e.g. a read-query handler building an HTTP response
// after the actor mutex has been released.
func (l *Labour) Clone() *Labour {
	return cloneLabour(l)
}
