package tuner

import (
	"testing"

	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

func TestPublishPeaksNormalizesWithinPublishedSet(t *testing.T) {
	peaks := []harmonic.Peak{
		{Frequency: 100, Amplitude: 8},
		{Frequency: 200, Amplitude: 4, HarmonicCount: 2},
		{Frequency: 300, Amplitude: 0.1},
	}

	got := publishPeaks(peaks, 2, SpectralAmplitudeFloor)

	if len(got) != 2 {
		t.Fatalf("published %d peaks, want 2", len(got))
	}
	if got[0].Amplitude != 1 || got[1].Amplitude != 0.5 {
		t.Errorf("amplitudes = %v, %v", got[0].Amplitude, got[1].Amplitude)
	}
	if got[1].HarmonicCount != 2 {
		t.Errorf("harmonic count = %d", got[1].HarmonicCount)
	}
	if peaks[0].Amplitude != 8 {
		t.Error("input peaks were modified")
	}
}

func TestPublishPeaksFloor(t *testing.T) {
	peaks := []harmonic.Peak{
		{Frequency: 100, Amplitude: 1},
		{Frequency: 200, Amplitude: 0.01},
	}

	spectral := publishPeaks(peaks, 10, amplitudeFloor(tonal.MethodFFT))
	if spectral[1].Amplitude != SpectralAmplitudeFloor {
		t.Errorf("spectral weak peak = %v, want floor", spectral[1].Amplitude)
	}

	acf := publishPeaks(peaks, 10, amplitudeFloor(tonal.MethodAutocorrelation))
	if acf[1].Amplitude != 0.01 {
		t.Errorf("autocorrelation weak peak = %v, want unclamped", acf[1].Amplitude)
	}
}

func TestPublishPeaksEdgeCases(t *testing.T) {
	if got := publishPeaks(nil, 5, 0); got == nil || len(got) != 0 {
		t.Errorf("nil input = %v, want empty list", got)
	}
	if got := publishPeaks([]harmonic.Peak{{Frequency: 1, Amplitude: 1}}, 0, 0); len(got) != 0 {
		t.Errorf("limit 0 published %v", got)
	}

	zero := publishPeaks([]harmonic.Peak{{Frequency: 100}, {Frequency: 200}}, 5, 0)
	for _, p := range zero {
		if p.Amplitude != 0 {
			t.Errorf("zero-amplitude peak normalized to %v", p.Amplitude)
		}
	}
}
