package tonal

import (
	"math"
	"testing"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"FFT", MethodFFT, true},
		{"fft", MethodFFT, true},
		{"Autocorrelation", MethodAutocorrelation, true},
		{" autocorrelation ", MethodAutocorrelation, true},
		{"yin", MethodFFT, false},
	}
	for _, tt := range tests {
		got, ok := ParseMethod(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMethod(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewDetectorVariants(t *testing.T) {
	params := DetectorParams{SampleRate: 48000, FrameSize: 1024, PaddingFactor: 2, ReferenceA4: 440}

	if d := NewDetector(MethodAutocorrelation, params); d.Method() != MethodAutocorrelation {
		t.Fatalf("got %v", d.Method())
	}
	if d := NewDetector(MethodFFT, params); d.Method() != MethodFFT {
		t.Fatalf("got %v", d.Method())
	}
	if d := NewDetector(Method("bogus"), params); d.Method() != MethodFFT {
		t.Fatalf("unknown method should fall back to FFT, got %v", d.Method())
	}
}

func TestSpectralDetectsSine(t *testing.T) {
	const sr, n = 48000, 8112
	sd := NewSpectralDetector(DetectorParams{SampleRate: sr, FrameSize: n, PaddingFactor: 2, ReferenceA4: 440})

	if sd.PaddedSize() != 16384 {
		t.Fatalf("padded size = %d, want 16384", sd.PaddedSize())
	}

	det := sd.Detect(synth(sr, n, partial{220, 0.5}))
	if !det.Found {
		t.Fatalf("no detection; peaks %+v", det.Peaks)
	}
	if math.Abs(det.Frequency-220) > sd.Resolution() {
		t.Fatalf("detected %.3f Hz, want 220 within %.3f", det.Frequency, sd.Resolution())
	}

	if len(det.Peaks) == 0 || len(det.Peaks) > CandidatePeaks {
		t.Fatalf("got %d peaks", len(det.Peaks))
	}
	maxAmp := 0.0
	for i, p := range det.Peaks {
		if i > 0 && p.Frequency < det.Peaks[i-1].Frequency {
			t.Fatalf("peaks not ordered by frequency: %+v", det.Peaks)
		}
		maxAmp = math.Max(maxAmp, p.Amplitude)
	}
	if maxAmp != 1 {
		t.Fatalf("peaks not normalized, max amplitude %v", maxAmp)
	}
}

func TestSpectralPrefersFundamentalOfHarmonicTone(t *testing.T) {
	const sr, n = 48000, 8112
	sd := NewSpectralDetector(DetectorParams{SampleRate: sr, FrameSize: n, PaddingFactor: 2, ReferenceA4: 440})

	// octave louder than the fundamental, as on a bowed low string
	det := sd.Detect(synth(sr, n, partial{196, 0.3}, partial{392, 0.5}, partial{588, 0.2}))
	if !det.Found {
		t.Fatal("no detection")
	}
	if math.Abs(det.Frequency-196) > sd.Resolution() {
		t.Fatalf("detected %.3f Hz, want the 196 Hz fundamental", det.Frequency)
	}
}

func TestSpectralSilence(t *testing.T) {
	sd := NewSpectralDetector(DetectorParams{SampleRate: 48000, FrameSize: 2048, PaddingFactor: 1, ReferenceA4: 440})
	det := sd.Detect(make([]float64, 2048))

	if det.Found {
		t.Fatal("silence produced a detection")
	}
	if det.Peaks == nil || len(det.Peaks) != 0 {
		t.Fatalf("silence should publish an empty peak list, got %v", det.Peaks)
	}
}

func TestSpectralRejectsWrongFrameSize(t *testing.T) {
	sd := NewSpectralDetector(DetectorParams{SampleRate: 48000, FrameSize: 2048, PaddingFactor: 1})
	if det := sd.Detect(make([]float64, 100)); det.Found {
		t.Fatal("mismatched frame produced a detection")
	}
}

func TestSpectralPaddingClamp(t *testing.T) {
	sd := NewSpectralDetector(DetectorParams{SampleRate: 48000, FrameSize: 1024, PaddingFactor: 50})
	if sd.PaddedSize() != 8192 {
		t.Fatalf("padded size = %d, want 8192 with padding clamped to 8", sd.PaddedSize())
	}
}

func TestAutocorrelationFindsPeriodicity(t *testing.T) {
	const sr, n = 48000, 4096
	ad := NewAutocorrelationDetector(DetectorParams{SampleRate: sr, FrameSize: n, ReferenceA4: 440})

	det := ad.Detect(synth(sr, n, partial{220, 0.5}))
	if !det.Found {
		t.Fatal("no detection")
	}

	// every period multiple is a correlation peak, so the winner may be a subharmonic
	ratio := 220 / det.Frequency
	if math.Abs(ratio-math.Round(ratio)) > 0.03 {
		t.Fatalf("detected %.3f Hz is not a subharmonic of 220", det.Frequency)
	}

	found := false
	for i, p := range det.Peaks {
		if i > 0 && p.Amplitude > det.Peaks[i-1].Amplitude {
			t.Fatalf("peaks not ordered by amplitude: %+v", det.Peaks)
		}
		if math.Abs(p.Frequency-220)/220 < 0.01 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no correlation peak near 220 Hz in %+v", det.Peaks)
	}
}

func TestAutocorrelationPrefersMostHarmonics(t *testing.T) {
	const sr, n = 48000, 4096
	ad := NewAutocorrelationDetector(DetectorParams{SampleRate: sr, FrameSize: n, ReferenceA4: 440})

	det := ad.Detect(synth(sr, n, partial{220, 0.5}))
	top := det.Peaks[:min(CandidatePeaks, len(det.Peaks))]

	best := -1
	for _, p := range top {
		best = max(best, p.HarmonicCount)
	}
	for _, p := range top {
		if p.Frequency == det.Frequency && p.HarmonicCount != best {
			t.Fatalf("selected peak has %d harmonics, best is %d", p.HarmonicCount, best)
		}
		if p.HarmonicCount == best && p.Frequency < det.Frequency {
			t.Fatalf("tie not broken toward the lowest frequency: %v < %v", p.Frequency, det.Frequency)
		}
	}
}

func TestAutocorrelationSilenceAndShortFrames(t *testing.T) {
	ad := NewAutocorrelationDetector(DetectorParams{SampleRate: 48000, FrameSize: 4096})
	if det := ad.Detect(make([]float64, 4096)); det.Found || len(det.Peaks) != 0 {
		t.Fatalf("silence produced %+v", det)
	}

	// shorter than the longest lag must not panic
	short := synth(48000, 200, partial{1000, 0.5})
	ad.Detect(short)
	ad.Detect(nil)
}
