package harmonic

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultTolerance is the relative distance from an integer ratio still counted as a harmonic
const DefaultTolerance = 0.03

// HarmonicRatios are the overtone ratios checked for each candidate fundamental
var HarmonicRatios = []float64{2, 3, 4, 5, 6}

// Peak is a candidate spectral or autocorrelation peak
type Peak struct {
	Frequency        float64 `json:"frequency"`         // Hz
	Amplitude        float64 `json:"amplitude"`         // raw or normalized magnitude
	HarmonicCount    int     `json:"harmonic_count"`    // supporting overtones found in the set
	HarmonicStrength float64 `json:"harmonic_strength"` // sum of overtone amplitude / ratio
}

// Analyzer scores peaks by how many of the other peaks sit on their overtone series
type Analyzer struct {
	ratios    []float64
	tolerance float64
}

// NewAnalyzer creates an analyzer with the default ratios and tolerance
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		ratios:    HarmonicRatios,
		tolerance: DefaultTolerance,
	}
}

// AnalyzeAll recomputes HarmonicCount and HarmonicStrength for every peak in place,
// using the same slice as the pool of possible overtones.
func (a *Analyzer) AnalyzeAll(peaks []Peak) {
	for i := range peaks {
		a.Analyze(&peaks[i], peaks)
	}
}

// Analyze scores fundamental against the peaks above it.
// Each higher peak contributes at most once, to the first ratio it matches.
func (a *Analyzer) Analyze(fundamental *Peak, peaks []Peak) {
	fundamental.HarmonicCount = 0
	fundamental.HarmonicStrength = 0

	if fundamental.Frequency <= 0 {
		return
	}

	for _, p := range peaks {
		if p.Frequency <= fundamental.Frequency {
			continue
		}

		ratio := p.Frequency / fundamental.Frequency
		for _, expected := range a.ratios {
			if math.Abs(ratio-expected) <= a.tolerance*expected {
				fundamental.HarmonicCount++
				fundamental.HarmonicStrength += p.Amplitude / expected
				break
			}
		}
	}
}

// SortByAmplitude orders peaks loudest first; equal amplitudes keep their order
func SortByAmplitude(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Amplitude > peaks[j].Amplitude
	})
}

// SortByFrequency orders peaks lowest first
func SortByFrequency(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Frequency < peaks[j].Frequency
	})
}

// Top returns a copy of the first n peaks (or all of them if fewer)
func Top(peaks []Peak, n int) []Peak {
	n = max(0, min(n, len(peaks)))
	out := make([]Peak, n)
	copy(out, peaks[:n])
	return out
}

// MaxAmplitude returns the largest amplitude, or 0 for an empty set
func MaxAmplitude(peaks []Peak) float64 {
	if len(peaks) == 0 {
		return 0
	}
	amps := make([]float64, len(peaks))
	for i, p := range peaks {
		amps[i] = p.Amplitude
	}
	return floats.Max(amps)
}

// Normalize divides every amplitude by the set maximum in place.
// A non-positive maximum leaves the amplitudes untouched.
func Normalize(peaks []Peak) {
	maxAmp := MaxAmplitude(peaks)
	if maxAmp <= 0 {
		maxAmp = 1
	}
	for i := range peaks {
		peaks[i].Amplitude /= maxAmp
	}
}
