package tonal

import (
	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tuner/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tuner/algorithms/windowing"
)

// Padding factor bounds for the spectral detector
const (
	MinPaddingFactor = 1
	MaxPaddingFactor = 8
)

// SpectralDetector windows a frame, zero-pads it into a power-of-two FFT and picks
// the best harmonic-scored magnitude peak, refined by parabolic interpolation
type SpectralDetector struct {
	sampleRate int
	frameSize  int
	picker     *harmonic.SpectralPeaks
	window     *windowing.Hann
	fft        *spectral.Radix2
	buf        []complex128
	mags       []float64
	analyzer   *harmonic.Analyzer
	selector   *PeakSelector
}

// NewSpectralDetector allocates the FFT working buffers for the given parameters
func NewSpectralDetector(params DetectorParams) *SpectralDetector {
	padding := min(max(params.PaddingFactor, MinPaddingFactor), MaxPaddingFactor)
	frameSize := max(params.FrameSize, 1)
	sr := max(params.SampleRate, 1)

	fft := spectral.NewRadix2(frameSize * padding)
	return &SpectralDetector{
		sampleRate: sr,
		frameSize:  frameSize,
		picker:     harmonic.NewSpectralPeaks(sr, fft.Size(), MinDetectFrequency, MaxDetectFrequency),
		window:     windowing.NewHann(frameSize),
		fft:        fft,
		buf:        make([]complex128, fft.Size()),
		mags:       make([]float64, fft.Size()/2+1),
		analyzer:   harmonic.NewAnalyzer(),
		selector:   NewPeakSelector(params.ReferenceA4),
	}
}

// Method returns MethodFFT
func (sd *SpectralDetector) Method() Method {
	return MethodFFT
}

// Resolution returns the bin spacing in Hz of the padded transform
func (sd *SpectralDetector) Resolution() float64 {
	return sd.picker.Resolution()
}

// PaddedSize returns the FFT length
func (sd *SpectralDetector) PaddedSize() int {
	return sd.fft.Size()
}

// Detect returns up to CandidatePeaks peaks, amplitude-normalized and ordered by
// frequency, plus the selected candidate when its score is high enough
func (sd *SpectralDetector) Detect(frame []float64) Detection {
	if err := sd.window.ApplyComplex(frame, sd.buf); err != nil {
		return Detection{}
	}
	clear(sd.buf[sd.frameSize:])

	if err := sd.fft.Transform(sd.buf); err != nil {
		return Detection{}
	}
	spectral.Magnitudes(sd.buf, sd.mags)

	found := sd.picker.RefineWithInterpolation(sd.mags, sd.picker.DetectPeaks(sd.mags))
	if len(found) == 0 {
		return Detection{Peaks: []harmonic.Peak{}}
	}

	peaks := make([]harmonic.Peak, len(found))
	for i, p := range found {
		peaks[i] = p.Peak()
	}

	harmonic.SortByAmplitude(peaks)
	top := harmonic.Top(peaks, CandidatePeaks)
	harmonic.Normalize(top)
	harmonic.SortByFrequency(top)
	sd.analyzer.AnalyzeAll(top)

	sel, ok := sd.selector.Select(top)
	if !ok {
		return Detection{Peaks: top}
	}

	return Detection{
		Frequency:  sel.Peak.Frequency,
		Confidence: sel.Probability,
		Found:      true,
		Peaks:      top,
	}
}
