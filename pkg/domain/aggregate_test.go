package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, state *Labour, events []Event) *Labour {
	t.Helper()
	if state == nil {
		s, err := FromEvents(events)
		require.NoError(t, err)
		return s
	}
	clone := cloneLabour(state)
	for _, e := range events {
		clone.Apply(e)
	}
	return clone
}

func TestPlanThenBegin(t *testing.T) {
	// planning a labour from nothing
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events, err := HandleCommand(nil, PlanLabourCmd{LabourID: "L", MotherID: "M", FirstLabour: true, DueDate: &due}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventLabourPlanned, events[0].EventType())
	assert.Equal(t, LabourPhaseChanged{Phase: PhasePlanned}, events[1])

	state := apply(t, nil, events)
	require.NotNil(t, state)
	assert.Equal(t, PhasePlanned, state.Phase)

	t0 := time.Now()
	begun, err := HandleCommand(state, BeginLabourCmd{StartTime: t0}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, begun, 3)
	assert.Equal(t, EventLabourBegun, begun[0].EventType())
	assert.Equal(t, LabourPhaseChanged{Phase: PhaseEarly}, begun[1])
	note, ok := begun[2].(LabourUpdatePosted)
	require.True(t, ok)
	assert.Equal(t, UpdatePrivateNote, note.Type)
	assert.Equal(t, "labour_begun", note.Message)
	assert.True(t, note.ApplicationGenerated)
}

func TestStartContractionFromPlanned(t *testing.T) {
	// starting the first contraction begins the labour implicitly
	state := &Labour{ID: "L", MotherID: "M", Phase: PhasePlanned}
	t0 := time.Now()
	events, err := HandleCommand(state, StartContractionCmd{ContractionID: "C1", StartTime: t0}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, LabourBegun{StartTime: t0}, events[0])
	assert.Equal(t, LabourPhaseChanged{Phase: PhaseEarly}, events[1])
	assert.Equal(t, ContractionStarted{ContractionID: "C1", StartTime: t0}, events[2])
}

func completedContraction(id string, start time.Time, dur time.Duration, intensity int) Contraction {
	end := start.Add(dur)
	return Contraction{ID: id, StartTime: start, EndTime: &end, Intensity: &intensity}
}

func TestPhaseUpgradeSkipsActiveStraightToTransition(t *testing.T) {
	base := time.Now()
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseEarly,
		Contractions: []Contraction{
			completedContraction("C1", base, 90*time.Second, 8),
			completedContraction("C2", base.Add(10*time.Minute), 90*time.Second, 8),
			completedContraction("C3", base.Add(20*time.Minute), 90*time.Second, 8),
			completedContraction("C4", base.Add(30*time.Minute), 90*time.Second, 8),
			{ID: "C5", StartTime: base.Add(40 * time.Minute)},
		},
	}
	intensity := 8
	endTime := state.Contractions[4].StartTime.Add(90 * time.Second)
	events, err := HandleCommand(state, EndContractionCmd{ContractionID: "C5", EndTime: endTime, Intensity: &intensity}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventContractionEnded, events[0].EventType())
	assert.Equal(t, LabourPhaseChanged{Phase: PhaseTransition}, events[1])
}

func TestPhaseNeverDowngrades(t *testing.T) {
	base := time.Now()
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseTransition,
		Contractions: []Contraction{
			completedContraction("C5", base, 60*time.Second, 6),
			completedContraction("C6", base.Add(10*time.Minute), 60*time.Second, 6),
			completedContraction("C7", base.Add(20*time.Minute), 60*time.Second, 6),
			completedContraction("C8", base.Add(30*time.Minute), 60*time.Second, 6),
			{ID: "C9", StartTime: base.Add(40 * time.Minute)},
		},
	}
	intensity := 6
	endTime := state.Contractions[4].StartTime.Add(60 * time.Second)
	events, err := HandleCommand(state, EndContractionCmd{ContractionID: "C9", EndTime: endTime, Intensity: &intensity}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventContractionEnded, events[0].EventType())
}

func TestEndContractionRequiresExistingActive(t *testing.T) {
	state := &Labour{ID: "L", MotherID: "M", Phase: PhaseEarly}
	_, err := HandleCommand(state, EndContractionCmd{ContractionID: "missing", EndTime: time.Now()}, DefaultPhaseThresholds)
	require.Error(t, err)
	var invalid *InvalidCommandError
	assert.ErrorAs(t, err, &invalid)
}

func TestStartContractionRejectsWhenAlreadyActive(t *testing.T) {
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseEarly,
		Contractions: []Contraction{{ID: "C1", StartTime: time.Now()}},
	}
	_, err := HandleCommand(state, StartContractionCmd{ContractionID: "C2", StartTime: time.Now()}, DefaultPhaseThresholds)
	require.Error(t, err)
}

func TestStartContractionRejectsInComplete(t *testing.T) {
	state := &Labour{ID: "L", MotherID: "M", Phase: PhaseComplete}
	_, err := HandleCommand(state, StartContractionCmd{ContractionID: "C1", StartTime: time.Now()}, DefaultPhaseThresholds)
	require.Error(t, err)
}

func TestUpdateContractionRejectsOverlap(t *testing.T) {
	base := time.Now()
	end1 := base.Add(time.Minute)
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseEarly,
		Contractions: []Contraction{
			{ID: "C1", StartTime: base, EndTime: &end1},
			{ID: "C2", StartTime: base.Add(10 * time.Minute), EndTime: ptrTime(base.Add(11 * time.Minute))},
		},
	}
	newEnd := base.Add(10*time.Minute + 30*time.Second)
	_, err := HandleCommand(state, UpdateContractionCmd{ContractionID: "C1", StartTime: base.Add(10 * time.Minute), EndTime: &newEnd}, DefaultPhaseThresholds)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCompleteLabourRejectsWithActiveContraction(t *testing.T) {
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseActive,
		Contractions: []Contraction{{ID: "C1", StartTime: time.Now()}},
	}
	_, err := HandleCommand(state, CompleteLabourCmd{EndTime: time.Now()}, DefaultPhaseThresholds)
	require.Error(t, err)
}

func TestRequestAccessRequiresMatchingToken(t *testing.T) {
	state := &Labour{ID: "L", MotherID: "M", Phase: PhaseActive, SubscriptionToken: &SubscriptionToken{Value: "ABCDE"}}
	_, err := HandleCommand(state, RequestAccessCmd{Token: "WRONG", SubscriberID: "U1"}, DefaultPhaseThresholds)
	require.Error(t, err)

	events, err := HandleCommand(state, RequestAccessCmd{Token: "ABCDE", SubscriberID: "U1"}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 1)
	req, ok := events[0].(SubscriberRequested)
	require.True(t, ok)
	assert.Equal(t, RoleLovedOne, req.Role)
	assert.Empty(t, req.SubscriptionID, "subscription identity is stamped by the command processor")

	stamped := StampIdentities(events, func() string { return "sub-id-1" })
	req = stamped[0].(SubscriberRequested)
	assert.Equal(t, "sub-id-1", req.SubscriptionID)
}

func TestDeleteLabourHidesAggregateFromLaterCommands(t *testing.T) {
	state := &Labour{ID: "L", MotherID: "M", Phase: PhaseEarly}
	events, err := HandleCommand(state, DeleteLabourCmd{}, DefaultPhaseThresholds)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventLabourDeleted, events[0].EventType())

	deleted := apply(t, state, events)
	require.True(t, deleted.Deleted)

	_, err = HandleCommand(deleted, BeginLabourCmd{StartTime: time.Now()}, DefaultPhaseThresholds)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = HandleCommand(deleted, PlanLabourCmd{LabourID: "L", MotherID: "M"}, DefaultPhaseThresholds)
	require.Error(t, err)
	var invalid *InvalidCommandError
	assert.ErrorAs(t, err, &invalid)
}

func TestRequestAccessRejectsDuplicateSubscriber(t *testing.T) {
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseActive,
		SubscriptionToken: &SubscriptionToken{Value: "ABCDE"},
		Subscriptions:     []Subscription{{ID: "S1", SubscriberID: "U1", Status: SubscriptionSubscribed}},
	}
	_, err := HandleCommand(state, RequestAccessCmd{Token: "ABCDE", SubscriberID: "U1"}, DefaultPhaseThresholds)
	require.Error(t, err)
}

func TestApproveSubscriberRequiresRequested(t *testing.T) {
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseActive,
		Subscriptions: []Subscription{{ID: "S1", SubscriberID: "U1", Status: SubscriptionSubscribed}},
	}
	_, err := HandleCommand(state, ApproveSubscriberCmd{SubscriptionID: "S1"}, DefaultPhaseThresholds)
	require.Error(t, err)
	var transErr *InvalidStateTransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestBlockUnblockRemoveTransitions(t *testing.T) {
	state := &Labour{
		ID: "L", MotherID: "M", Phase: PhaseActive,
		Subscriptions: []Subscription{{ID: "S1", SubscriberID: "U1", Status: SubscriptionSubscribed}},
	}
	_, err := HandleCommand(state, BlockSubscriberCmd{SubscriptionID: "S1"}, DefaultPhaseThresholds)
	require.NoError(t, err)

	blocked := apply(t, state, []Event{SubscriberBlocked{SubscriptionID: "S1"}})
	_, err = HandleCommand(blocked, BlockSubscriberCmd{SubscriptionID: "S1"}, DefaultPhaseThresholds)
	require.Error(t, err)

	_, err = HandleCommand(blocked, RemoveSubscriberCmd{SubscriptionID: "S1"}, DefaultPhaseThresholds)
	require.Error(t, err)

	_, err = HandleCommand(blocked, UnblockSubscriberCmd{SubscriptionID: "S1"}, DefaultPhaseThresholds)
	require.NoError(t, err)
}

func TestFromEventsRequiresLabourPlannedFirst(t *testing.T) {
	_, err := FromEvents([]Event{LabourBegun{StartTime: time.Now()}})
	require.Error(t, err)
}

func TestFromEventsEmptyReturnsNil(t *testing.T) {
	state, err := FromEvents(nil)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestFromEventsIsDeterministic(t *testing.T) {
	base := time.Now()
	end := base.Add(time.Minute)
	intensity := 7
	log := []Event{
		LabourPlanned{LabourID: "L", MotherID: "M"},
		LabourPhaseChanged{Phase: PhasePlanned},
		LabourBegun{StartTime: base},
		LabourPhaseChanged{Phase: PhaseEarly},
		ContractionStarted{ContractionID: "C1", StartTime: base},
		ContractionEnded{ContractionID: "C1", EndTime: end, Intensity: &intensity},
		SubscriberRequested{SubscriptionID: "S1", SubscriberID: "U1", Role: RoleLovedOne},
		SubscriberApproved{SubscriptionID: "S1"},
		SubscriptionTokenSet{Token: "ABCDE"},
	}

	first, err := FromEvents(log)
	require.NoError(t, err)
	second, err := FromEvents(log)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAtMostOneActiveContraction(t *testing.T) {
	base := time.Now()
	events := []Event{
		LabourPlanned{LabourID: "L", MotherID: "M"},
		LabourPhaseChanged{Phase: PhasePlanned},
		LabourBegun{StartTime: base},
		LabourPhaseChanged{Phase: PhaseEarly},
		ContractionStarted{ContractionID: "C1", StartTime: base},
		ContractionEnded{ContractionID: "C1", EndTime: base.Add(time.Minute)},
		ContractionStarted{ContractionID: "C2", StartTime: base.Add(2 * time.Minute)},
	}
	state, err := FromEvents(events)
	require.NoError(t, err)
	active := 0
	for _, c := range state.Contractions {
		if c.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func ptrTime(t time.Time) *time.Time { return &t }
