package eventstore

import (
	"context"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the pgx-backed Store implementation. Sequences are assigned
// per aggregate_id transactionally: the next sequence is
// max(sequence)+1 under a row lock held for the duration of the append, so
// concurrent appends to the same aggregate (which should never happen given
// the actor's single-writer guarantee, but may under process restarts)
// never collide.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore over an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Append(ctx context.Context, aggregateID, userID string, events []domain.Event) ([]StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventstore: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var maxSeq int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM stored_events WHERE aggregate_id = $1 FOR UPDATE`,
		aggregateID,
	).Scan(&maxSeq)
	if err != nil {
		return nil, fmt.Errorf("eventstore: lock aggregate sequence: %w", err)
	}

	stored := make([]StoredEvent, 0, len(events))
	batch := &pgx.Batch{}
	for i, event := range events {
		seq := maxSeq + int64(i) + 1
		payload, err := encode(event)
		if err != nil {
			return nil, err
		}
		batch.Queue(
			`INSERT INTO stored_events (aggregate_id, sequence, event_type, event_version, event_data, user_id)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
			aggregateID, seq, string(event.EventType()), 1, payload, userID,
		)
		stored = append(stored, StoredEvent{
			Sequence:     seq,
			AggregateID:  aggregateID,
			EventType:    event.EventType(),
			EventVersion: 1,
			Event:        event,
			UserID:       userID,
		})
	}

	results := tx.SendBatch(ctx, batch)
	for i := range stored {
		if err := results.QueryRow().Scan(&stored[i].CreatedAt); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("eventstore: insert event: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("eventstore: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("eventstore: commit append: %w", err)
	}
	return stored, nil
}

func (s *PGStore) Load(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	return s.query(ctx, `SELECT sequence, event_type, event_version, event_data, created_at, user_id
		FROM stored_events WHERE aggregate_id = $1 ORDER BY sequence ASC`, aggregateID)
}

func (s *PGStore) EventsSince(ctx context.Context, aggregateID string, since int64, limit int) ([]StoredEvent, error) {
	return s.query(ctx, `SELECT sequence, event_type, event_version, event_data, created_at, user_id
		FROM stored_events WHERE aggregate_id = $1 AND sequence > $2 ORDER BY sequence ASC LIMIT $3`,
		aggregateID, since, limit)
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			se      StoredEvent
			rawType string
			payload []byte
		)
		se.AggregateID = aggregateIDFromArgs(args)
		if err := rows.Scan(&se.Sequence, &rawType, &se.EventVersion, &payload, &se.CreatedAt, &se.UserID); err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		se.EventType = domain.EventType(rawType)
		event, err := decode(se.EventType, payload)
		if err != nil {
			return nil, err
		}
		se.Event = event
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: rows: %w", err)
	}
	return out, nil
}

func aggregateIDFromArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if id, ok := args[0].(string); ok {
		return id
	}
	return ""
}

func (s *PGStore) MaxSequence(ctx context.Context, aggregateID string) (int64, bool, error) {
	var seq *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(sequence) FROM stored_events WHERE aggregate_id = $1`, aggregateID,
	).Scan(&seq)
	if err != nil {
		return 0, false, fmt.Errorf("eventstore: max sequence: %w", err)
	}
	if seq == nil {
		return 0, false, nil
	}
	return *seq, true, nil
}
