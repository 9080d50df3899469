package harmonic

import (
	"math"
	"testing"
)

func TestDetectPeaksInBand(t *testing.T) {
	// 16-point spectrum at 1600 Hz: 100 Hz bins, band 150-500 Hz covers bins 2-5
	sp := NewSpectralPeaks(1600, 16, 150, 500)
	mags := []float64{0, 9, 1, 3, 1, 4, 2, 8, 1}

	peaks := sp.DetectPeaks(mags)

	if len(peaks) != 2 {
		t.Fatalf("found %d peaks, want 2: %+v", len(peaks), peaks)
	}
	if peaks[0].BinIndex != 3 || peaks[1].BinIndex != 5 {
		t.Errorf("bins = %d, %d, want 3, 5", peaks[0].BinIndex, peaks[1].BinIndex)
	}
	if peaks[0].Frequency != 300 || peaks[0].Magnitude != 3 {
		t.Errorf("first peak = %+v", peaks[0])
	}
}

func TestDetectPeaksClampsToSpectrum(t *testing.T) {
	sp := NewSpectralPeaks(1600, 16, 0, 10000)

	if peaks := sp.DetectPeaks([]float64{0, 5}); len(peaks) != 0 {
		t.Errorf("two-bin spectrum produced %+v", peaks)
	}
	peaks := sp.DetectPeaks([]float64{0, 5, 0, 0, 0, 0, 0, 0, 7})
	if len(peaks) != 1 || peaks[0].BinIndex != 1 {
		t.Errorf("peaks = %+v, want only bin 1 (edge bin has no right neighbor)", peaks)
	}
}

func TestRefineWithInterpolation(t *testing.T) {
	sp := NewSpectralPeaks(1600, 16, 0, 800)
	parabola := func(x float64) float64 { return 10 - (x-4.25)*(x-4.25) }
	mags := make([]float64, 9)
	for i := range mags {
		mags[i] = parabola(float64(i))
	}

	refined := sp.RefineWithInterpolation(mags, sp.DetectPeaks(mags))

	if len(refined) != 1 {
		t.Fatalf("refined %d peaks", len(refined))
	}
	if math.Abs(refined[0].Frequency-425) > 1e-9 {
		t.Errorf("frequency = %v, want 425", refined[0].Frequency)
	}
	if refined[0].Magnitude != mags[4] {
		t.Errorf("magnitude = %v, want bin value %v", refined[0].Magnitude, mags[4])
	}
	if p := refined[0].Peak(); p.Frequency != refined[0].Frequency || p.Amplitude != mags[4] {
		t.Errorf("Peak() = %+v", p)
	}
}

func TestParabolicOffset(t *testing.T) {
	if got := ParabolicOffset(1, 2, 1); got != 0 {
		t.Fatalf("symmetric peak offset = %v", got)
	}
	if got := ParabolicOffset(1, 2, 1.5); got <= 0 || got >= 0.5 {
		t.Fatalf("right-leaning offset = %v, want in (0, 0.5)", got)
	}
	if got := ParabolicOffset(1, 1, 1); got != 0 {
		t.Fatalf("flat offset = %v", got)
	}

	// a sampled parabola peaking at x = 0.3 is recovered exactly
	f := func(x float64) float64 { return 5 - (x-0.3)*(x-0.3) }
	if got := ParabolicOffset(f(-1), f(0), f(1)); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("offset = %v, want 0.3", got)
	}
}
