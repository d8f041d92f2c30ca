package validators

import "math"

// DefaultReputationDecayFactor is the per-epoch multiplicative decay applied
// to every Active or Exiting validator's reputation before churn processing
// (Pending validators are not decayed while they wait to activate), so idle
// reputation erodes gradually rather than staying fixed forever.
const DefaultReputationDecayFactor = 0.95

// ReputationTracker applies geometric decay to reputation scores across
// epochs. This supplements the lifecycle state machine in types.go: the
// spec defines reputation as an input to activation and weighting but not
// its evolution over time, so the decay model below restores that
// behavior from the system this core was distilled from.
type ReputationTracker struct {
	decayFactor float64
}

// NewReputationTracker returns a tracker with the given per-epoch decay
// factor (0 < factor <= 1). Pass DefaultReputationDecayFactor for the
// standard 5%-per-epoch decay.
func NewReputationTracker(decayFactor float64) ReputationTracker {
	return ReputationTracker{decayFactor: decayFactor}
}

// ApplyDecay returns currentScore decayed by epochsPassed epochs.
func (t ReputationTracker) ApplyDecay(currentScore uint64, epochsPassed uint64) uint64 {
	if epochsPassed == 0 {
		return currentScore
	}
	factor := math.Pow(t.decayFactor, float64(epochsPassed))
	return uint64(float64(currentScore) * factor)
}
