package domain

// PhaseThresholds configures the phase-progression policy.
// T1/I1 gate ACTIVE, T2/I2 gate TRANSITION. T2 > T1 and I2 > I1 must hold.
type PhaseThresholds struct {
	WindowSize          int
	ActiveDuration      float64 // seconds
	ActiveIntensity     float64
	TransitionDuration  float64 // seconds
	TransitionIntensity float64
}

// DefaultPhaseThresholds are the concrete values this implementation uses:
// a 4-contraction window, ACTIVE at 60s mean duration and mean intensity 6,
// TRANSITION at 90s and 8.
var DefaultPhaseThresholds = PhaseThresholds{
	WindowSize:          4,
	ActiveDuration:      60,
	ActiveIntensity:     6,
	TransitionDuration:  90,
	TransitionIntensity: 8,
}

// evaluatePhase runs the phase-progression policy over the last
// thresholds.WindowSize completed contractions (most recent first in the
// aggregate's Contractions slice order; any stable order works since we
// only need the window's mean). It returns the highest threshold reached,
// or an empty Phase ("") if the window is too small or reaches no threshold.
func evaluatePhase(contractions []Contraction, thresholds PhaseThresholds) Phase {
	completed := make([]Contraction, 0, len(contractions))
	for _, c := range contractions {
		if !c.Active() {
			completed = append(completed, c)
		}
	}
	if len(completed) < thresholds.WindowSize {
		return ""
	}
	window := completed[len(completed)-thresholds.WindowSize:]

	var totalDuration float64
	var totalIntensity float64
	var intensityCount int
	for _, c := range window {
		totalDuration += c.Duration().Seconds()
		if c.Intensity != nil {
			totalIntensity += float64(*c.Intensity)
			intensityCount++
		}
	}
	meanDuration := totalDuration / float64(len(window))
	var meanIntensity float64
	if intensityCount > 0 {
		meanIntensity = totalIntensity / float64(intensityCount)
	}

	if meanDuration >= thresholds.TransitionDuration && meanIntensity >= thresholds.TransitionIntensity {
		return PhaseTransition
	}
	if meanDuration >= thresholds.ActiveDuration && meanIntensity >= thresholds.ActiveIntensity {
		return PhaseActive
	}
	return ""
}
