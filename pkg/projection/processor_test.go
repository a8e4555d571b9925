package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/fernlabour/labour-actor/pkg/domain"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProjector struct {
	name      string
	fail      bool
	projected []eventstore.StoredEvent
}

func (f *fakeProjector) Name() string { return f.name }

func (f *fakeProjector) ProjectBatch(_ context.Context, _ string, events []eventstore.StoredEvent) error {
	if f.fail {
		return errors.New("boom")
	}
	f.projected = append(f.projected, events...)
	return nil
}

func seedEvents(t *testing.T, store eventstore.Store, aggregateID string, n int) {
	t.Helper()
	events := make([]domain.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, domain.LabourPhaseChanged{Phase: domain.PhasePlanned})
	}
	_, err := store.Append(context.Background(), aggregateID, "tester", events)
	require.NoError(t, err)
}

func TestProcessorAdvancesHealthyProjector(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "L1", 3)

	fp := &fakeProjector{name: "fake"}
	checkpoints := NewMemoryCheckpointStore()
	proc := NewProcessor([]Projector{fp}, checkpoints, 10)

	err := proc.Run(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.Len(t, fp.projected, 3)

	cp, err := checkpoints.Load(context.Background(), "L1", "fake")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cp.LastProcessedSequence)
	assert.Equal(t, StatusHealthy, cp.Status)
}

func TestProcessorIsolatesFailingProjector(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "L1", 2)

	good := &fakeProjector{name: "good"}
	bad := &fakeProjector{name: "bad", fail: true}
	checkpoints := NewMemoryCheckpointStore()
	proc := NewProcessor([]Projector{good, bad}, checkpoints, 10)

	err := proc.Run(context.Background(), "L1", store)
	require.Error(t, err)

	goodCp, err := checkpoints.Load(context.Background(), "L1", "good")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, goodCp.Status)
	assert.Equal(t, int64(2), goodCp.LastProcessedSequence)

	badCp, err := checkpoints.Load(context.Background(), "L1", "bad")
	require.NoError(t, err)
	assert.Equal(t, StatusError, badCp.Status)
	assert.Equal(t, 1, badCp.ErrorCount)
	assert.Equal(t, int64(0), badCp.LastProcessedSequence)
}

func TestProcessorSkipsProjectorPastErrorBudget(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "L1", 1)

	bad := &fakeProjector{name: "bad", fail: true}
	checkpoints := NewMemoryCheckpointStore()
	proc := NewProcessor([]Projector{bad}, checkpoints, 10)

	for i := 0; i < MaxProjectorErrorCount; i++ {
		_ = proc.Run(context.Background(), "L1", store)
	}
	cp, err := checkpoints.Load(context.Background(), "L1", "bad")
	require.NoError(t, err)
	assert.Equal(t, MaxProjectorErrorCount, cp.ErrorCount)

	// One more run should skip (no error) since the budget is exhausted.
	err = proc.Run(context.Background(), "L1", store)
	require.NoError(t, err)
}

func TestWatermarkIsMinAcrossProjectors(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "L1", 5)

	fast := &fakeProjector{name: "fast"}
	slow := &fakeProjector{name: "slow"}
	checkpoints := NewMemoryCheckpointStore()

	proc := NewProcessor([]Projector{fast}, checkpoints, 10)
	require.NoError(t, proc.Run(context.Background(), "L1", store))

	slowProc := NewProcessor([]Projector{slow}, checkpoints, 2)
	require.NoError(t, slowProc.Run(context.Background(), "L1", store))

	combined := NewProcessor([]Projector{fast, slow}, checkpoints, 10)
	watermark, err := combined.Watermark(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.Equal(t, int64(2), watermark)

	hasMore, err := combined.HasUnprocessedEvents(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.True(t, hasMore)
}

func TestWatermarkIsLogHeadWhenNoProjectorRemains(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "L1", 3)

	empty := NewProcessor(nil, NewMemoryCheckpointStore(), 10)
	watermark, err := empty.Watermark(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.Equal(t, int64(3), watermark)

	hasMore, err := empty.HasUnprocessedEvents(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.False(t, hasMore)

	// A fully-faulted registry behaves the same: nothing left to wait for.
	bad := &fakeProjector{name: "bad", fail: true}
	checkpoints := NewMemoryCheckpointStore()
	faulted := NewProcessor([]Projector{bad}, checkpoints, 10)
	for i := 0; i < MaxProjectorErrorCount; i++ {
		_ = faulted.Run(context.Background(), "L1", store)
	}
	watermark, err = faulted.Watermark(context.Background(), "L1", store)
	require.NoError(t, err)
	assert.Equal(t, int64(3), watermark)
}
