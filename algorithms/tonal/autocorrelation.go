package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"gonum.org/v1/gonum/floats"
)

// AutocorrelationDetector estimates pitch from local maxima of the normalized
// time-domain autocorrelation over lags covering 50-1500 Hz
type AutocorrelationDetector struct {
	sampleRate int
	minPeriod  int
	maxPeriod  int
	analyzer   *harmonic.Analyzer
	selector   *PeakSelector
}

// NewAutocorrelationDetector creates an autocorrelation estimator
func NewAutocorrelationDetector(params DetectorParams) *AutocorrelationDetector {
	sr := max(params.SampleRate, 1)
	return &AutocorrelationDetector{
		sampleRate: sr,
		minPeriod:  max(sr/int(MaxDetectFrequency), 1),
		maxPeriod:  sr / int(MinDetectFrequency),
		analyzer:   harmonic.NewAnalyzer(),
		selector:   NewPeakSelector(params.ReferenceA4),
	}
}

// Method returns MethodAutocorrelation
func (ad *AutocorrelationDetector) Method() Method {
	return MethodAutocorrelation
}

// Detect sweeps the lag range, records a peak each time the correlation turns down
// after rising, and picks the candidate with the most harmonic support (lowest
// frequency on ties). Returned peaks are every correlation peak, strongest first.
func (ad *AutocorrelationDetector) Detect(frame []float64) Detection {
	peaks := ad.correlationPeaks(frame)
	if len(peaks) == 0 {
		return Detection{}
	}

	harmonic.SortByAmplitude(peaks)
	top := peaks[:min(CandidatePeaks, len(peaks))]
	ad.analyzer.AnalyzeAll(top)

	candidates := harmonic.Top(top, len(top))
	harmonic.SortByFrequency(candidates)

	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.HarmonicCount > best.HarmonicCount {
			best = p
		}
	}

	return Detection{
		Frequency:  best.Frequency,
		Confidence: ad.selector.NoteProbability(best),
		Found:      true,
		Peaks:      peaks,
	}
}

func (ad *AutocorrelationDetector) correlationPeaks(frame []float64) []harmonic.Peak {
	maxPeriod := min(ad.maxPeriod, len(frame)-1)

	var peaks []harmonic.Peak
	last := 0.0
	rising := false

	for period := ad.minPeriod; period <= maxPeriod; period++ {
		n := len(frame) - period
		correlation := floats.Dot(frame[:n], frame[period:]) / float64(n)

		if rising && correlation < last {
			// the previous lag was the local maximum
			peaks = append(peaks, harmonic.Peak{
				Frequency: float64(ad.sampleRate) / float64(period-1),
				Amplitude: math.Abs(last),
			})
			rising = false
		} else if correlation > last {
			rising = true
		}

		last = correlation
	}

	return peaks
}
