package eventstore

import (
	"context"
	"testing"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsMonotonicGapFreeSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stored, err := store.Append(ctx, "L1", "M", []domain.Event{
		domain.LabourPlanned{LabourID: "L1", MotherID: "M"},
		domain.LabourPhaseChanged{Phase: domain.PhasePlanned},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(1), stored[0].Sequence)
	assert.Equal(t, int64(2), stored[1].Sequence)

	more, err := store.Append(ctx, "L1", "M", []domain.Event{
		domain.LabourBegun{},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), more[0].Sequence)
}

func TestLoadIsTotalOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Append(ctx, "L1", "M", []domain.Event{
		domain.LabourPlanned{LabourID: "L1", MotherID: "M"},
		domain.LabourPhaseChanged{Phase: domain.PhasePlanned},
		domain.LabourBegun{},
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, e := range loaded {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestEventsSinceIsAscendingAndCapped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	events := make([]domain.Event, 0, 5)
	for i := 0; i < 5; i++ {
		events = append(events, domain.LabourPhaseChanged{Phase: domain.PhasePlanned})
	}
	_, err := store.Append(ctx, "L1", "M", events)
	require.NoError(t, err)

	since, err := store.EventsSince(ctx, "L1", 2, 2)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(3), since[0].Sequence)
	assert.Equal(t, int64(4), since[1].Sequence)
}

func TestMaxSequenceNoneWhenEmpty(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.MaxSequence(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := NewMemoryStore()
	stored, err := store.Append(context.Background(), "L1", "M", nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
