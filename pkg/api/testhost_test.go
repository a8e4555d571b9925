package api

import (
	"context"

	"github.com/fernlabour/labour-actor/pkg/actor"
	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/fernlabour/labour-actor/pkg/processmanager"
	"github.com/fernlabour/labour-actor/pkg/projection"
)

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, aggregateID string, effect processmanager.Effect) error {
	return nil
}

// newTestHost builds a Host backed entirely by in-memory collaborators, the
// same composition actor_test.go uses, so pkg/api handler tests can dispatch
// real commands without a database.
func newTestHost(store eventstore.Store) *actor.Host {
	sync := projection.NewProcessor(nil, projection.NewMemoryCheckpointStore(), 1000)
	async := projection.NewProcessor(nil, projection.NewMemoryCheckpointStore(), 1000)
	pm := &processmanager.Manager{
		Store:    store,
		Ledger:   processmanager.NewMemoryLedger(),
		Executor: noopExecutor{},
	}
	deps := actor.Deps{
		Store:              store,
		SyncProcessor:      sync,
		AsyncProcessor:     async,
		ProcessManager:     pm,
		Thresholds:         domain.DefaultPhaseThresholds,
		CooldownSeconds:    300,
		InternalUserPrefix: "svc_",
	}
	return actor.NewHost(deps)
}
