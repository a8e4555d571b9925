package processmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger is the pgx-backed Ledger. Natural deduplication relies on the
// pending_effects.idempotency_key UNIQUE constraint plus ON CONFLICT DO
// NOTHING.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger constructs a PGLedger over an existing pool.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) PersistEventEffects(ctx context.Context, aggregateID string, sequence int64, effects []PendingEffect) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("processmanager: begin persist: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, effect := range effects {
		payload, err := encodeEffect(effect.Effect)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO pending_effects
			   (effect_id, aggregate_id, event_sequence, effect_type, payload, idempotency_key, status, attempts, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
			 ON CONFLICT (idempotency_key) DO NOTHING`,
			effect.EffectID, effect.AggregateID, effect.EventSequence, effect.EffectType, payload,
			effect.IdempotencyKey, EffectPending, effect.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("processmanager: insert effect: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO process_manager_state (aggregate_id, last_processed_sequence) VALUES ($1, $2)
		 ON CONFLICT (aggregate_id) DO UPDATE SET last_processed_sequence = EXCLUDED.last_processed_sequence`,
		aggregateID, sequence)
	if err != nil {
		return fmt.Errorf("processmanager: advance watermark: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("processmanager: commit persist: %w", err)
	}
	return nil
}

func (l *PGLedger) Dispatchable(ctx context.Context, aggregateID string, maxAttempts int) ([]PendingEffect, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT effect_id, event_sequence, effect_type, payload, idempotency_key, status, attempts, last_attempt_at, last_error, created_at
		 FROM pending_effects
		 WHERE aggregate_id = $1 AND status IN ($2, $3) AND attempts < $4
		 ORDER BY created_at ASC`,
		aggregateID, EffectPending, EffectDispatched, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("processmanager: dispatchable: %w", err)
	}
	defer rows.Close()

	var out []PendingEffect
	for rows.Next() {
		var (
			pe      PendingEffect
			payload []byte
		)
		pe.AggregateID = aggregateID
		if err := rows.Scan(&pe.EffectID, &pe.EventSequence, &pe.EffectType, &payload, &pe.IdempotencyKey,
			&pe.Status, &pe.Attempts, &pe.LastAttemptAt, &pe.LastError, &pe.CreatedAt); err != nil {
			return nil, fmt.Errorf("processmanager: scan effect: %w", err)
		}
		effect, err := decodeEffect(pe.EffectType, payload)
		if err != nil {
			return nil, err
		}
		pe.Effect = effect
		out = append(out, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("processmanager: rows: %w", err)
	}
	return out, nil
}

func (l *PGLedger) MarkDispatched(ctx context.Context, effectID string, attemptAt time.Time) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE pending_effects SET status = $2, attempts = attempts + 1, last_attempt_at = $3 WHERE effect_id = $1`,
		effectID, EffectDispatched, attemptAt)
	if err != nil {
		return fmt.Errorf("processmanager: mark dispatched: %w", err)
	}
	return nil
}

func (l *PGLedger) MarkCompleted(ctx context.Context, effectID string) error {
	_, err := l.pool.Exec(ctx, `UPDATE pending_effects SET status = $2 WHERE effect_id = $1`, effectID, EffectCompleted)
	if err != nil {
		return fmt.Errorf("processmanager: mark completed: %w", err)
	}
	return nil
}

func (l *PGLedger) MarkRetryable(ctx context.Context, effectID, lastError string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE pending_effects SET status = $2, last_error = $3 WHERE effect_id = $1`,
		effectID, EffectDispatched, lastError)
	if err != nil {
		return fmt.Errorf("processmanager: mark retryable: %w", err)
	}
	return nil
}

func (l *PGLedger) MarkFailed(ctx context.Context, effectID, lastError string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE pending_effects SET status = $2, last_error = $3 WHERE effect_id = $1`,
		effectID, EffectFailed, lastError)
	if err != nil {
		return fmt.Errorf("processmanager: mark failed: %w", err)
	}
	return nil
}

func (l *PGLedger) LastProcessedSequence(ctx context.Context, aggregateID string) (int64, error) {
	var seq int64
	err := l.pool.QueryRow(ctx,
		`SELECT last_processed_sequence FROM process_manager_state WHERE aggregate_id = $1`, aggregateID,
	).Scan(&seq)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("processmanager: last processed sequence: %w", err)
	}
	return seq, nil
}

func (l *PGLedger) SetLastProcessedSequence(ctx context.Context, aggregateID string, sequence int64) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO process_manager_state (aggregate_id, last_processed_sequence) VALUES ($1, $2)
		 ON CONFLICT (aggregate_id) DO UPDATE SET last_processed_sequence = EXCLUDED.last_processed_sequence`,
		aggregateID, sequence)
	if err != nil {
		return fmt.Errorf("processmanager: set last processed sequence: %w", err)
	}
	return nil
}
