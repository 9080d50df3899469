package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
)

// Selection weights and acceptance threshold for PeakSelector scores
const (
	HarmonicWeight    = 2.0
	ProbabilityWeight = 3.0
	AmplitudeWeight   = 0.5
	ProximityWeight   = 0.3
	MinAcceptScore    = 2.0
)

// PeakSelector picks the most plausible fundamental out of a scored peak set
type PeakSelector struct {
	mapper *NoteMapper
}

// NewPeakSelector creates a selector relative to the given reference A4
func NewPeakSelector(referenceA4 float64) *PeakSelector {
	return &PeakSelector{mapper: NewNoteMapper(referenceA4)}
}

// NoteProbability estimates how note-like a peak is from its harmonic support
// and its distance to the nearest equal-tempered pitch, capped at 1
func (ps *PeakSelector) NoteProbability(p harmonic.Peak) float64 {
	if p.Frequency <= 0 {
		return 0
	}

	proximity := 0.0
	if off := ps.mapper.CentsOff(p.Frequency); off <= 50 {
		proximity = ProximityWeight * (1 - off/50)
	}

	prob := 0.2*float64(p.HarmonicCount) + math.Min(p.HarmonicStrength, 0.3) + proximity
	return math.Min(prob, 1.0)
}

// Score combines harmonic support, note probability, a low-frequency preference and amplitude
func (ps *PeakSelector) Score(p harmonic.Peak) float64 {
	return HarmonicWeight*float64(p.HarmonicCount) +
		ProbabilityWeight*ps.NoteProbability(p) +
		1/(1+p.Frequency/ps.mapper.ReferenceA4()) +
		AmplitudeWeight*p.Amplitude
}

// Selection is the outcome of PeakSelector.Select
type Selection struct {
	Peak        harmonic.Peak
	Score       float64
	Probability float64
	Accepted    bool
}

// Select returns the highest scoring peak; the first peak wins ties.
// The selection is accepted only when its score exceeds MinAcceptScore.
func (ps *PeakSelector) Select(peaks []harmonic.Peak) (Selection, bool) {
	if len(peaks) == 0 {
		return Selection{}, false
	}

	best := Selection{Score: math.Inf(-1)}
	for _, p := range peaks {
		if s := ps.Score(p); s > best.Score {
			best = Selection{Peak: p, Score: s}
		}
	}

	best.Probability = ps.NoteProbability(best.Peak)
	best.Accepted = best.Score > MinAcceptScore
	return best, best.Accepted
}
