package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePhaseRequiresFullWindow(t *testing.T) {
	// fewer than 4 completed contractions returns no upgrade
	base := time.Now()
	contractions := []Contraction{
		completedContraction("C1", base, 120*time.Second, 9),
		completedContraction("C2", base.Add(time.Minute), 120*time.Second, 9),
		completedContraction("C3", base.Add(2*time.Minute), 120*time.Second, 9),
	}
	assert.Equal(t, Phase(""), evaluatePhase(contractions, DefaultPhaseThresholds))
}

func TestEvaluatePhaseIgnoresActiveContractionInWindow(t *testing.T) {
	base := time.Now()
	contractions := []Contraction{
		completedContraction("C1", base, 90*time.Second, 8),
		completedContraction("C2", base.Add(time.Minute), 90*time.Second, 8),
		completedContraction("C3", base.Add(2*time.Minute), 90*time.Second, 8),
		completedContraction("C4", base.Add(3*time.Minute), 90*time.Second, 8),
		{ID: "C5", StartTime: base.Add(4 * time.Minute)},
	}
	assert.Equal(t, PhaseTransition, evaluatePhase(contractions, DefaultPhaseThresholds))
}

func TestEvaluatePhaseBelowActiveThresholdReturnsEmpty(t *testing.T) {
	base := time.Now()
	contractions := []Contraction{
		completedContraction("C1", base, 20*time.Second, 3),
		completedContraction("C2", base.Add(time.Minute), 20*time.Second, 3),
		completedContraction("C3", base.Add(2*time.Minute), 20*time.Second, 3),
		completedContraction("C4", base.Add(3*time.Minute), 20*time.Second, 3),
	}
	assert.Equal(t, Phase(""), evaluatePhase(contractions, DefaultPhaseThresholds))
}

func TestPhaseRankOrdering(t *testing.T) {
	assert.True(t, PhaseActive.After(PhaseEarly))
	assert.True(t, PhaseTransition.After(PhaseActive))
	assert.False(t, PhaseEarly.After(PhaseActive))
	assert.False(t, PhasePlanned.After(PhasePlanned))
}
