package tuner

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

// SpectralAmplitudeFloor keeps weak spectral peaks visible in the published list
const SpectralAmplitudeFloor = 0.05

// publishPeaks trims peaks to limit and normalizes amplitudes by the largest published one.
// floor > 0 raises every amplitude to at least floor. Detection never sees the result.
func publishPeaks(peaks []harmonic.Peak, limit int, floor float64) []PublishedPeak {
	n := min(max(limit, 0), len(peaks))
	out := make([]PublishedPeak, n)
	if n == 0 {
		return out
	}

	maxAmp := harmonic.MaxAmplitude(peaks[:n])
	if maxAmp <= 0 {
		maxAmp = 1
	}

	for i, p := range peaks[:n] {
		amp := p.Amplitude / maxAmp
		if floor > 0 {
			amp = math.Max(floor, amp)
		}
		out[i] = PublishedPeak{
			Frequency:     p.Frequency,
			Amplitude:     amp,
			HarmonicCount: p.HarmonicCount,
		}
	}

	return out
}

func amplitudeFloor(method tonal.Method) float64 {
	if method == tonal.MethodFFT {
		return SpectralAmplitudeFloor
	}
	return 0
}

func samePeaks(a, b []PublishedPeak) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
