package processmanager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/fernlabour/labour-actor/pkg/processmanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommandIssuer struct {
	issued []domain.Command
	err    error
}

func (f *fakeCommandIssuer) IssueInternalCommand(ctx context.Context, aggregateID string, cmd domain.Command) error {
	if f.err != nil {
		return f.err
	}
	f.issued = append(f.issued, cmd)
	return nil
}

type fakeTokenGenerator struct {
	token string
	err   error
}

func (f fakeTokenGenerator) Generate() (string, error) { return f.token, f.err }

type fakeUserStore struct{}

func (fakeUserStore) GetProfile(ctx context.Context, userID string) (processmanager.UserProfile, error) {
	return processmanager.UserProfile{}, nil
}

type fakeNotificationClient struct {
	sends      int
	emailSends int
	fail       bool
}

func (f *fakeNotificationClient) Send(ctx context.Context, channel processmanager.NotificationChannel, to processmanager.UserProfile, kind processmanager.NotificationKind, data map[string]any) error {
	if f.fail {
		return errors.New("delivery unavailable")
	}
	f.sends++
	return nil
}

func (f *fakeNotificationClient) SendToEmail(ctx context.Context, email string, kind processmanager.NotificationKind, data map[string]any) error {
	if f.fail {
		return errors.New("delivery unavailable")
	}
	f.emailSends++
	return nil
}

// apply runs cmd against state, stamps blank identities, appends the
// resulting events to store, and folds them back into state, mirroring what
// pkg/actor.Actor does on the live command path.
func apply(t *testing.T, store eventstore.Store, aggregateID string, state *domain.Labour, cmd domain.Command) *domain.Labour {
	t.Helper()
	events, err := domain.HandleCommand(state, cmd, domain.DefaultPhaseThresholds)
	require.NoError(t, err)
	events = domain.StampIdentities(events, uuid.NewString)
	_, err = store.Append(context.Background(), aggregateID, "mother-1", events)
	require.NoError(t, err)
	if state == nil {
		fresh, err := domain.FromEvents(events)
		require.NoError(t, err)
		return fresh
	}
	for _, e := range events {
		state.Apply(e)
	}
	return state
}

// subscribedLabour builds a planned, begun labour with one SUBSCRIBED
// subscriber. The full log derives three notification effects: the access
// request (to the mother), the approval (to the subscriber), and the
// labour-begun marker note (fanned out to every SUBSCRIBED subscription).
func subscribedLabour(t *testing.T, store eventstore.Store, aggregateID string) *domain.Labour {
	t.Helper()
	state := apply(t, store, aggregateID, nil, domain.PlanLabourCmd{LabourID: aggregateID, MotherID: "mother-1"})
	state = apply(t, store, aggregateID, state, domain.SetSubscriptionTokenCmd{Token: "TOKEN"})
	state = apply(t, store, aggregateID, state, domain.RequestAccessCmd{Token: "TOKEN", SubscriberID: "subscriber-1"})
	sub := state.FindSubscriptionFromSubscriberID("subscriber-1")
	require.NotNil(t, sub)
	state = apply(t, store, aggregateID, state, domain.ApproveSubscriberCmd{SubscriptionID: sub.ID})
	state = apply(t, store, aggregateID, state, domain.BeginLabourCmd{StartTime: time.Now()})
	return state
}

func effectsOfKind(effects []processmanager.PendingEffect, kind processmanager.NotificationKind) []processmanager.PendingEffect {
	var out []processmanager.PendingEffect
	for _, e := range effects {
		if e.EffectType == processmanager.EffectSendNotification && e.Effect.Notification.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestProcessNewEventsDerivesNotificationsFromTheLog(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	ledger := processmanager.NewMemoryLedger()
	mgr := &processmanager.Manager{Store: store, Ledger: ledger, Executor: nil}

	subscribedLabour(t, store, "labour-1")

	require.NoError(t, mgr.ProcessNewEvents(ctx, "labour-1"))

	effects := ledger.Effects("labour-1")
	require.Len(t, effects, 3)

	requested := effectsOfKind(effects, processmanager.NotificationSubscriberRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, processmanager.RecipientMother, requested[0].Effect.Notification.Recipient)
	assert.Equal(t, "mother-1", requested[0].Effect.Notification.UserID)

	approved := effectsOfKind(effects, processmanager.NotificationSubscriberApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, "subscriber-1", approved[0].Effect.Notification.UserID)

	begun := effectsOfKind(effects, processmanager.NotificationLabourBegun)
	require.Len(t, begun, 1)
	assert.Equal(t, processmanager.RecipientSubscriber, begun[0].Effect.Notification.Recipient)
	assert.Equal(t, "subscriber-1", begun[0].Effect.Notification.UserID)
}

func TestProcessNewEventsIsIdempotentOnReplay(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	ledger := processmanager.NewMemoryLedger()
	mgr := &processmanager.Manager{Store: store, Ledger: ledger}

	subscribedLabour(t, store, "labour-1")

	require.NoError(t, mgr.ProcessNewEvents(ctx, "labour-1"))
	firstPass := ledger.Effects("labour-1")

	// Reset the watermark to force re-derivation of the whole log, the
	// worst-case crash/replay scenario: the idempotency keys alone must
	// prevent duplicates.
	require.NoError(t, ledger.SetLastProcessedSequence(ctx, "labour-1", 0))
	require.NoError(t, mgr.ProcessNewEvents(ctx, "labour-1"))

	assert.Len(t, ledger.Effects("labour-1"), len(firstPass), "replay must not duplicate effects")
}

func TestDispatchPendingEffectsCompletesOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	ledger := processmanager.NewMemoryLedger()
	notifications := &fakeNotificationClient{}
	executor := processmanager.NewDefaultExecutor(fakeUserStore{}, notifications, &fakeCommandIssuer{}, fakeTokenGenerator{token: "ABCDE"})
	mgr := &processmanager.Manager{Store: store, Ledger: ledger, Executor: executor}

	subscribedLabour(t, store, "labour-1")
	require.NoError(t, mgr.ProcessNewEvents(ctx, "labour-1"))
	require.NoError(t, mgr.DispatchPendingEffects(ctx, "labour-1"))

	effects := ledger.Effects("labour-1")
	require.Len(t, effects, 3)
	for _, e := range effects {
		assert.Equal(t, processmanager.EffectCompleted, e.Status)
		assert.Equal(t, 1, e.Attempts)
	}
	assert.Equal(t, 3, notifications.sends)
}

// effect retry then exhaustion: attempts 1, 2, 3 then FAILED, and a fourth
// pass must not re-attempt.
func TestDispatchPendingEffectsRetriesThenExhausts(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	ledger := processmanager.NewMemoryLedger()
	notifications := &fakeNotificationClient{fail: true}
	executor := processmanager.NewDefaultExecutor(fakeUserStore{}, notifications, &fakeCommandIssuer{}, fakeTokenGenerator{})
	mgr := &processmanager.Manager{Store: store, Ledger: ledger, Executor: executor, MaxAttempts: 3}

	subscribedLabour(t, store, "labour-1")
	require.NoError(t, mgr.ProcessNewEvents(ctx, "labour-1"))

	for pass := 1; pass <= 3; pass++ {
		err := mgr.DispatchPendingEffects(ctx, "labour-1")
		require.Error(t, err)
		for _, e := range ledger.Effects("labour-1") {
			assert.Equal(t, pass, e.Attempts)
		}
	}

	effects := ledger.Effects("labour-1")
	require.Len(t, effects, 3)
	for _, e := range effects {
		assert.Equal(t, processmanager.EffectFailed, e.Status)
		assert.Equal(t, 3, e.Attempts)
		require.NotNil(t, e.LastError)
	}

	require.NoError(t, mgr.DispatchPendingEffects(ctx, "labour-1"))
	for _, e := range ledger.Effects("labour-1") {
		assert.Equal(t, 3, e.Attempts, "exhausted effects must not be re-attempted")
	}
}

func TestExecutorGenerateSubscriptionTokenIssuesSetTokenCommand(t *testing.T) {
	ctx := context.Background()
	issuer := &fakeCommandIssuer{}
	executor := processmanager.NewDefaultExecutor(fakeUserStore{}, &fakeNotificationClient{}, issuer, fakeTokenGenerator{token: "ZZZZZ"})

	err := executor.Execute(ctx, "labour-1", processmanager.Effect{
		Type:             processmanager.EffectGenerateSubscriptionToken,
		LabourIDForToken: "labour-1",
	})
	require.NoError(t, err)
	require.Len(t, issuer.issued, 1)
	setCmd, ok := issuer.issued[0].(domain.SetSubscriptionTokenCmd)
	require.True(t, ok)
	assert.Equal(t, "ZZZZZ", setCmd.Token)
}

// subscription tokens: 5 chars, all in [A-Z0-9], no repeats across a large
// sample.
func TestCSPRNGTokenGeneratorFormat(t *testing.T) {
	gen := processmanager.CSPRNGTokenGenerator{}
	seen := make(map[string]struct{})
	for i := 0; i < 512; i++ {
		tok, err := gen.Generate()
		require.NoError(t, err)
		require.Len(t, tok, 5)
		for _, r := range tok {
			require.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "unexpected rune %q in token %q", r, tok)
		}
		seen[tok] = struct{}{}
	}
	assert.Greater(t, len(seen), 500)
}

func TestIdempotencyKeyDistinctPerRecipientAndChannel(t *testing.T) {
	k1 := processmanager.IdempotencyKey("labour-1", 3, processmanager.NotificationPurpose("user-1", processmanager.ChannelEmail, processmanager.NotificationLabourBegun))
	k2 := processmanager.IdempotencyKey("labour-1", 3, processmanager.NotificationPurpose("user-2", processmanager.ChannelEmail, processmanager.NotificationLabourBegun))
	k3 := processmanager.IdempotencyKey("labour-1", 3, processmanager.NotificationPurpose("user-1", processmanager.ChannelEmail, processmanager.NotificationLabourBegun))
	k4 := processmanager.IdempotencyKey("labour-1", 3, processmanager.NotificationPurpose("user-1", processmanager.ChannelSMS, processmanager.NotificationLabourBegun))
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, k3)
	assert.NotEqual(t, k1, k4)
}
