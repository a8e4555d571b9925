package processmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/google/uuid"
)

// Manager implements the process manager: derive-and-persist
// (Phase A) and dispatch (Phase B), bound by an at-least-once retry ledger.
type Manager struct {
	Store       eventstore.Store
	Ledger      Ledger
	Executor    Executor
	MaxAttempts int // defaults to MaxRetryAttempts if zero
	BatchSize   int // defaults to DefaultBatchSize if zero
}

func (m *Manager) maxAttempts() int {
	if m.MaxAttempts > 0 {
		return m.MaxAttempts
	}
	return MaxRetryAttempts
}

func (m *Manager) batchSize() int {
	if m.BatchSize > 0 {
		return m.BatchSize
	}
	return DefaultBatchSize
}

// ProcessNewEvents is Phase A: load the aggregate once,
// fetch events since the watermark, derive effects per event via the
// static policy table, and persist them transactionally with the
// watermark advance so duplicate effects are impossible on replay.
func (m *Manager) ProcessNewEvents(ctx context.Context, aggregateID string) error {
	watermark, err := m.Ledger.LastProcessedSequence(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("processmanager: load watermark: %w", err)
	}

	history, err := m.Store.Load(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("processmanager: load history: %w", err)
	}

	newEvents, err := m.Store.EventsSince(ctx, aggregateID, watermark, m.batchSize())
	if err != nil {
		return fmt.Errorf("processmanager: events_since: %w", err)
	}
	if len(newEvents) == 0 {
		return nil
	}

	// Build the pre-batch snapshot (state as of the watermark) and fold
	// forward one event at a time so each policy sees the aggregate
	// exactly as it stood once its triggering event was applied.
	snapshot, err := rehydrateUpTo(history, watermark)
	if err != nil {
		return err
	}

	for _, se := range newEvents {
		if snapshot == nil {
			fresh, err := domain.FromEvents([]domain.Event{se.Event})
			if err != nil {
				return fmt.Errorf("processmanager: fold: %w", err)
			}
			snapshot = fresh
		} else {
			snapshot.Apply(se.Event)
		}

		derived := policies(se.Event, PolicyContext{Aggregate: snapshot, Sequence: se.Sequence})
		effects := make([]PendingEffect, 0, len(derived))
		now := time.Now().UTC()
		for _, eff := range derived {
			purpose := effectPurpose(eff)
			key := IdempotencyKey(aggregateID, se.Sequence, purpose)
			effects = append(effects, PendingEffect{
				EffectID:       uuid.NewString(),
				AggregateID:    aggregateID,
				EventSequence:  se.Sequence,
				EffectType:     eff.Type,
				Effect:         eff,
				IdempotencyKey: key,
				Status:         EffectPending,
				CreatedAt:      now,
			})
		}
		if err := m.Ledger.PersistEventEffects(ctx, aggregateID, se.Sequence, effects); err != nil {
			return fmt.Errorf("processmanager: persist effects for sequence %d: %w", se.Sequence, err)
		}
	}
	return nil
}

// DispatchPendingEffects is Phase B: attempt every dispatchable
// effect once, marking it completed, retryable, or exhausted. A single
// pass may have partial failures; it returns an error iff at least one
// effect failed this pass, used to surface to the scheduler.
func (m *Manager) DispatchPendingEffects(ctx context.Context, aggregateID string) error {
	effects, err := m.Ledger.Dispatchable(ctx, aggregateID, m.maxAttempts())
	if err != nil {
		return fmt.Errorf("processmanager: load dispatchable: %w", err)
	}

	var errs []error
	for _, effect := range effects {
		now := time.Now().UTC()
		if err := m.Ledger.MarkDispatched(ctx, effect.EffectID, now); err != nil {
			errs = append(errs, fmt.Errorf("mark dispatched %s: %w", effect.EffectID, err))
			continue
		}

		execErr := m.Executor.Execute(ctx, aggregateID, effect.Effect)
		if execErr == nil {
			if err := m.Ledger.MarkCompleted(ctx, effect.EffectID); err != nil {
				errs = append(errs, fmt.Errorf("mark completed %s: %w", effect.EffectID, err))
			}
			continue
		}

		errs = append(errs, fmt.Errorf("effect %s: %w", effect.EffectID, execErr))
		attemptsAfter := effect.Attempts + 1
		if attemptsAfter >= m.maxAttempts() {
			if err := m.Ledger.MarkFailed(ctx, effect.EffectID, execErr.Error()); err != nil {
				errs = append(errs, fmt.Errorf("mark failed %s: %w", effect.EffectID, err))
			}
			slog.Warn("effect exhausted retries", "effect_id", effect.EffectID, "attempts", attemptsAfter)
			continue
		}
		if err := m.Ledger.MarkRetryable(ctx, effect.EffectID, execErr.Error()); err != nil {
			errs = append(errs, fmt.Errorf("mark retryable %s: %w", effect.EffectID, err))
		}
	}
	return errors.Join(errs...)
}

func rehydrateUpTo(history []eventstore.StoredEvent, watermark int64) (*domain.Labour, error) {
	var events []domain.Event
	for _, se := range history {
		if se.Sequence > watermark {
			break
		}
		events = append(events, se.Event)
	}
	if len(events) == 0 {
		return nil, nil
	}
	state, err := domain.FromEvents(events)
	if err != nil {
		return nil, fmt.Errorf("processmanager: rehydrate to watermark: %w", err)
	}
	return state, nil
}

func effectPurpose(effect Effect) string {
	switch effect.Type {
	case EffectSendNotification:
		return NotificationPurpose(recipientKey(effect.Notification), effect.Notification.Channel, effect.Notification.Kind)
	case EffectIssueCommand:
		return fmt.Sprintf("issue_command|%s", effect.Command.CommandType())
	case EffectGenerateSubscriptionToken:
		return "generate_subscription_token"
	default:
		return string(effect.Type)
	}
}

func recipientKey(intent *NotificationIntent) string {
	if intent == nil {
		return ""
	}
	if intent.Recipient == RecipientEmail {
		return intent.Email
	}
	return intent.UserID
}
