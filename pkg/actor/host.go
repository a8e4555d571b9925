package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/fernlabour/labour-actor/pkg/processmanager"
)

// Rearmer schedules a follow-up alarm pass for an aggregate. Implemented
// by *scheduler.Scheduler; declared here so Host can arm without importing
// pkg/scheduler, which in turn would need to import pkg/actor to spawn its
// AlarmRunner. Same import-cycle avoidance as Broadcaster and
// processmanager.CommandIssuer.
type Rearmer interface {
	Arm(aggregateID string, delay time.Duration)
}

// Host is the per-process registry of Actors, one per labour aggregate.
// It implements processmanager.CommandIssuer (internal effect dispatch
// re-enters the command path under a synthetic principal) and
// scheduler.AlarmRunner (the scheduler fires alarms by aggregate ID, and
// Host resolves that ID to its Actor).
type Host struct {
	deps Deps

	mu      sync.Mutex
	actors  map[string]*Actor
	rearmer Rearmer
}

// NewHost constructs an empty Host bound to deps, shared by every Actor it
// creates.
func NewHost(deps Deps) *Host {
	return &Host{deps: deps, actors: make(map[string]*Actor)}
}

// SetRearmer wires the scheduler after construction, breaking the
// Host<->Scheduler construction cycle (the scheduler needs a
// fully-constructed AlarmRunner, and Host needs a Rearmer to arm itself
// after each command).
func (h *Host) SetRearmer(r Rearmer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rearmer = r
}

// SetProcessManager wires the process manager after construction. The
// manager's executor needs the Host (to issue internal commands), so it
// cannot exist before NewHost returns. Must be called during composition,
// before any Actor has been created.
func (h *Host) SetProcessManager(pm *processmanager.Manager) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps.ProcessManager = pm
}

// SetBroadcaster wires the WebSocket connection manager after construction,
// for the same reason as SetProcessManager: the connection manager
// authorizes subscribe requests through the Host. Must be called during
// composition, before any Actor has been created.
func (h *Host) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps.Broadcaster = b
}

func (h *Host) getOrCreate(aggregateID string) *Actor {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.actors[aggregateID]; ok {
		return a
	}
	a := newActor(aggregateID, h.deps)
	h.actors[aggregateID] = a
	return a
}

func (h *Host) arm(aggregateID string) {
	h.mu.Lock()
	r := h.rearmer
	h.mu.Unlock()
	if r != nil {
		r.Arm(aggregateID, 0)
	}
}

// Dispatch authorizes and executes cmd against the aggregate aggregateID,
// appending the resulting events and arming the scheduler for a follow-up
// alarm pass.
func (h *Host) Dispatch(ctx context.Context, aggregateID string, principal authz.Principal, userID string, cmd domain.Command) ([]eventstore.StoredEvent, error) {
	a := h.getOrCreate(aggregateID)
	stored, err := a.HandleCommand(ctx, principal, userID, cmd)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		h.arm(aggregateID)
	}
	return stored, nil
}

// Query authorizes and returns a snapshot of the aggregate identified by
// aggregateID, for read-only HTTP routes.
func (h *Host) Query(ctx context.Context, aggregateID string, principal authz.Principal, action authz.Action) (*domain.Labour, error) {
	a := h.getOrCreate(aggregateID)
	return a.Query(ctx, principal, action)
}

// ResolvePrincipal classifies user against the current state of the
// aggregate identified by aggregateID.
func (h *Host) ResolvePrincipal(ctx context.Context, aggregateID string, user authz.User) (authz.Principal, error) {
	a := h.getOrCreate(aggregateID)
	return a.ResolvePrincipal(ctx, user)
}

// IssueInternalCommand implements processmanager.CommandIssuer: the process
// manager re-enters the command path under a synthetic internal principal
// so effects like subscription-token generation flow through the same
// validation and authorization path real requests do.
func (h *Host) IssueInternalCommand(ctx context.Context, aggregateID string, cmd domain.Command) error {
	principal := authz.InternalPrincipal("process-manager")
	_, err := h.Dispatch(ctx, aggregateID, principal, "process-manager", cmd)
	if err != nil {
		return fmt.Errorf("actor: internal command %s on %s: %w", cmd.CommandType(), aggregateID, err)
	}
	return nil
}

// RunAlarm implements scheduler.AlarmRunner by resolving aggregateID to
// its Actor and running one alarm pass against it.
func (h *Host) RunAlarm(ctx context.Context, aggregateID string) (bool, error) {
	a := h.getOrCreate(aggregateID)
	return a.runAlarmPass(ctx)
}
