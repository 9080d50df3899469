package harmonic

import "math"

// SpectralPeak is a local maximum of a magnitude spectrum
type SpectralPeak struct {
	Frequency float64 // Peak frequency in Hz
	Magnitude float64 // Magnitude at the peak bin
	BinIndex  int     // Original FFT bin index
}

// Peak converts the spectral peak into a candidate for harmonic analysis
func (sp SpectralPeak) Peak() Peak {
	return Peak{Frequency: sp.Frequency, Amplitude: sp.Magnitude}
}

// SpectralPeaks finds peaks of a fixed-size magnitude spectrum inside a frequency band
type SpectralPeaks struct {
	resolution float64
	minBin     int
	maxBin     int
}

// NewSpectralPeaks creates a peak picker for an fftSize-point spectrum restricted to [minFreq, maxFreq]
func NewSpectralPeaks(sampleRate, fftSize int, minFreq, maxFreq float64) *SpectralPeaks {
	fftSize = max(fftSize, 1)
	resolution := float64(max(sampleRate, 1)) / float64(fftSize)

	return &SpectralPeaks{
		resolution: resolution,
		minBin:     max(int(math.Ceil(minFreq/resolution)), 1),
		maxBin:     min(int(math.Floor(maxFreq/resolution)), fftSize/2-1),
	}
}

// Resolution returns the bin spacing in Hz
func (sp *SpectralPeaks) Resolution() float64 {
	return sp.resolution
}

// DetectPeaks returns every in-band bin strictly greater than both neighbors, lowest bin first
func (sp *SpectralPeaks) DetectPeaks(magnitudeSpectrum []float64) []SpectralPeak {
	maxBin := min(sp.maxBin, len(magnitudeSpectrum)-2)

	var peaks []SpectralPeak
	for i := sp.minBin; i <= maxBin; i++ {
		if magnitudeSpectrum[i] > magnitudeSpectrum[i-1] && magnitudeSpectrum[i] > magnitudeSpectrum[i+1] {
			peaks = append(peaks, SpectralPeak{
				Frequency: float64(i) * sp.resolution,
				Magnitude: magnitudeSpectrum[i],
				BinIndex:  i,
			})
		}
	}

	return peaks
}

// RefineWithInterpolation moves each peak frequency to the vertex of the parabola through
// its bin and the two neighbors. Magnitudes keep the bin value.
func (sp *SpectralPeaks) RefineWithInterpolation(magnitudeSpectrum []float64, peaks []SpectralPeak) []SpectralPeak {
	refined := make([]SpectralPeak, len(peaks))

	for i, peak := range peaks {
		refined[i] = peak
		bin := peak.BinIndex
		if bin <= 0 || bin >= len(magnitudeSpectrum)-1 {
			continue
		}

		offset := ParabolicOffset(magnitudeSpectrum[bin-1], magnitudeSpectrum[bin], magnitudeSpectrum[bin+1])
		refined[i].Frequency = (float64(bin) + offset) * sp.resolution
	}

	return refined
}

// ParabolicOffset returns the sub-bin offset of a peak from its magnitude and its
// neighbors, 0.5*(a-g)/(a-2b+g); a flat neighborhood yields 0
func ParabolicOffset(alpha, beta, gamma float64) float64 {
	denom := alpha - 2*beta + gamma
	if denom == 0 {
		return 0
	}
	return 0.5 * (alpha - gamma) / denom
}
