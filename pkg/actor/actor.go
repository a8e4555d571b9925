// Package actor is the composition root: one Actor per labour aggregate,
// serializing command handling and alarm passes behind a single mutex so
// each labour behaves as a single-writer cooperative actor.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/fernlabour/labour-actor/pkg/processmanager"
	"github.com/fernlabour/labour-actor/pkg/projection"
	"github.com/google/uuid"
)

// Broadcaster delivers newly-projected events to whatever owns live
// subscribers for an aggregate (the WS edge in pkg/api). Declared here
// rather than in pkg/api to avoid an actor -> api import cycle, mirroring
// processmanager.CommandIssuer.
type Broadcaster interface {
	Broadcast(aggregateID string, events []eventstore.StoredEvent)
}

// Deps are the collaborators shared by every Actor a Host constructs.
type Deps struct {
	Store              eventstore.Store
	SyncProcessor      *projection.Processor
	AsyncProcessor     *projection.Processor
	ProcessManager     *processmanager.Manager
	Thresholds         domain.PhaseThresholds
	CooldownSeconds    int
	InternalUserPrefix string
	Broadcaster        Broadcaster
}

// Actor owns one labour aggregate's in-memory cache and serializes every
// command and alarm pass against it behind mu.
type Actor struct {
	id   string
	deps Deps

	mu               sync.Mutex
	cached           *domain.Labour
	loaded           bool
	lastBroadcastSeq int64
	broadcastPrimed  bool
}

func newActor(id string, deps Deps) *Actor {
	return &Actor{id: id, deps: deps}
}

// state returns the rehydrated aggregate, loading and caching it on first
// use. Callers must hold a.mu.
func (a *Actor) state(ctx context.Context) (*domain.Labour, error) {
	if a.loaded {
		return a.cached, nil
	}
	events, err := a.deps.Store.Load(ctx, a.id)
	if err != nil {
		return nil, fmt.Errorf("actor: load %s: %w", a.id, err)
	}
	domainEvents := make([]domain.Event, len(events))
	for i, se := range events {
		domainEvents[i] = se.Event
	}
	state, err := domain.FromEvents(domainEvents)
	if err != nil {
		return nil, fmt.Errorf("actor: rehydrate %s: %w", a.id, err)
	}
	a.cached = state
	a.loaded = true
	return a.cached, nil
}

// HandleCommand authorizes and validates cmd against this actor's current
// state, appends the resulting events, and updates the write-through
// cache. The returned events are already stamped with sequence numbers and
// any blank identity fields the aggregate left for the command processor
// to fill.
func (a *Actor) HandleCommand(ctx context.Context, principal authz.Principal, userID string, cmd domain.Command) ([]eventstore.StoredEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, err := a.state(ctx)
	if err != nil {
		return nil, err
	}

	// The announcement cooldown and sent timestamp are operational inputs,
	// not caller-supplied data.
	if post, ok := cmd.(domain.PostLabourUpdateCmd); ok {
		post.CooldownSeconds = a.deps.CooldownSeconds
		if post.SentTime.IsZero() {
			post.SentTime = time.Now().UTC()
		}
		cmd = post
	}

	action := authz.CommandAction(cmd)
	if err := authz.Authorize(principal, action, state); err != nil {
		return nil, err
	}

	events, err := domain.HandleCommand(state, cmd, a.deps.Thresholds)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	stamped := domain.StampIdentities(events, uuid.NewString)

	stored, err := a.deps.Store.Append(ctx, a.id, userID, stamped)
	if err != nil {
		return nil, fmt.Errorf("actor: append %s: %w", a.id, err)
	}

	if state == nil {
		fresh, err := domain.FromEvents(stamped)
		if err != nil {
			return nil, fmt.Errorf("actor: fold new aggregate %s: %w", a.id, err)
		}
		a.cached = fresh
	} else {
		for _, e := range stamped {
			state.Apply(e)
		}
		a.cached = state
	}
	a.loaded = true

	return stored, nil
}

// Query authorizes action and returns a point-in-time copy of this
// actor's aggregate state, safe to read after the lock is released.
func (a *Actor) Query(ctx context.Context, principal authz.Principal, action authz.Action) (*domain.Labour, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, err := a.state(ctx)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, action, state); err != nil {
		return nil, err
	}
	if state == nil || state.Deleted {
		return nil, nil
	}
	return state.Clone(), nil
}

// ResolvePrincipal classifies an authenticated user against this actor's
// current aggregate state, without authorizing any particular action. HTTP
// and WS handlers use this to build the Principal they then pass to Query
// or HandleCommand.
func (a *Actor) ResolvePrincipal(ctx context.Context, u authz.User) (authz.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, err := a.state(ctx)
	if err != nil {
		return authz.Principal{}, err
	}
	if state != nil && state.Deleted {
		state = nil
	}
	return authz.ResolvePrincipal(u, state, a.deps.InternalUserPrefix), nil
}

// runAlarmPass executes the seven-step alarm body: sync projection,
// broadcast of newly-projected events, async projection, process-manager
// derive and dispatch, and a final unprocessed-events check that tells the
// scheduler whether to rearm immediately.
//
// Effect dispatch runs after a.mu has been released: IssueCommand and
// GenerateSubscriptionToken effects re-enter HandleCommand on this same
// actor through Host.IssueInternalCommand, and a.mu is not reentrant.
// HandleCommand serializes those re-entrant commands itself, so the
// single-writer guarantee holds across the whole pass.
func (a *Actor) runAlarmPass(ctx context.Context) (bool, error) {
	var errs []error

	a.mu.Lock()
	errs = append(errs, a.projectAndDerive(ctx)...)
	a.mu.Unlock()

	if err := a.deps.ProcessManager.DispatchPendingEffects(ctx, a.id); err != nil {
		errs = append(errs, fmt.Errorf("process manager dispatch: %w", err))
	}

	syncMore, err := a.deps.SyncProcessor.HasUnprocessedEvents(ctx, a.id, a.deps.Store)
	if err != nil {
		errs = append(errs, fmt.Errorf("sync has_unprocessed_events: %w", err))
	}
	asyncMore, err := a.deps.AsyncProcessor.HasUnprocessedEvents(ctx, a.id, a.deps.Store)
	if err != nil {
		errs = append(errs, fmt.Errorf("async has_unprocessed_events: %w", err))
	}

	return syncMore || asyncMore, errors.Join(errs...)
}

// projectAndDerive is the locked portion of an alarm pass: sync projection,
// broadcast bookkeeping, async projection, and process-manager effect
// derivation. Callers must hold a.mu.
func (a *Actor) projectAndDerive(ctx context.Context) []error {
	var errs []error

	if err := a.deps.SyncProcessor.Run(ctx, a.id, a.deps.Store); err != nil {
		errs = append(errs, fmt.Errorf("sync projection: %w", err))
	}

	if a.deps.Broadcaster != nil {
		watermark, err := a.deps.SyncProcessor.Watermark(ctx, a.id, a.deps.Store)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync watermark: %w", err))
		} else if !a.broadcastPrimed {
			// First pass since this actor came up: events projected before
			// now were already delivered (or are the catchup path's job),
			// so prime the cursor instead of replaying history.
			a.lastBroadcastSeq = watermark
			a.broadcastPrimed = true
		} else if watermark > a.lastBroadcastSeq {
			newEvents, err := a.deps.Store.EventsSince(ctx, a.id, a.lastBroadcastSeq, broadcastFetchLimit)
			if err != nil {
				errs = append(errs, fmt.Errorf("broadcast events_since: %w", err))
			} else {
				toSend := filterUpTo(newEvents, watermark)
				if len(toSend) > 0 {
					a.deps.Broadcaster.Broadcast(a.id, toSend)
					a.lastBroadcastSeq = watermark
				}
			}
		}
	}

	if err := a.deps.AsyncProcessor.Run(ctx, a.id, a.deps.Store); err != nil {
		errs = append(errs, fmt.Errorf("async projection: %w", err))
	}

	if err := a.deps.ProcessManager.ProcessNewEvents(ctx, a.id); err != nil {
		errs = append(errs, fmt.Errorf("process manager derive: %w", err))
	}

	return errs
}

// broadcastFetchLimit bounds how many newly-projected events one alarm pass
// fetches for broadcast; a labour's per-pass event volume never approaches
// this, so it acts as an unlimited fetch in practice.
const broadcastFetchLimit = 100000

func filterUpTo(events []eventstore.StoredEvent, watermark int64) []eventstore.StoredEvent {
	out := make([]eventstore.StoredEvent, 0, len(events))
	for _, e := range events {
		if e.Sequence > watermark {
			break
		}
		out = append(out, e)
	}
	return out
}

