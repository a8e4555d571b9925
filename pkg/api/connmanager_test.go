package api

import (
	"context"
	"testing"
	"time"

	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/stretchr/testify/require"
)

func TestConnectionManagerBroadcastSkipsUnknownChannel(t *testing.T) {
	store := eventstore.NewMemoryStore()
	host := newTestHost(store)
	m := NewConnectionManager(store, host, time.Second)

	// No subscribers registered for "labour-1": Broadcast must be a no-op,
	// not a panic, when the channel has never been subscribed to.
	require.NotPanics(t, func() {
		m.Broadcast("labour-1", []eventstore.StoredEvent{{Sequence: 1, AggregateID: "labour-1"}})
	})
}

func TestConnectionManagerActiveConnectionsStartsZero(t *testing.T) {
	store := eventstore.NewMemoryStore()
	host := newTestHost(store)
	m := NewConnectionManager(store, host, time.Second)

	require.Equal(t, 0, m.ActiveConnections())
}

func TestConnectionManagerSubscribeRequiresAuthorization(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	host := newTestHost(store)

	mother := authz.Principal{Kind: authz.KindMother, UserID: "mother-1"}
	_, err := host.Dispatch(ctx, "labour-1", mother, "mother-1", domain.PlanLabourCmd{
		LabourID: "labour-1", MotherID: "mother-1",
	})
	require.NoError(t, err)

	// A stranger's Principal resolves to Unassociated against this
	// aggregate, and ActionReadLabour requires CapReadLabour, which
	// Unassociated never holds. This is the same check the subscribe flow
	// runs before ever touching the websocket.
	principal, err := host.ResolvePrincipal(ctx, "labour-1", authz.User{UserID: "stranger"})
	require.NoError(t, err)
	_, err = host.Query(ctx, "labour-1", principal, authz.Action{Kind: authz.ActionReadLabour})
	require.Error(t, err)

	motherPrincipal, err := host.ResolvePrincipal(ctx, "labour-1", authz.User{UserID: "mother-1"})
	require.NoError(t, err)
	_, err = host.Query(ctx, "labour-1", motherPrincipal, authz.Action{Kind: authz.ActionReadLabour})
	require.NoError(t, err)
}
