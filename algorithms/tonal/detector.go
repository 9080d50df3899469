package tonal

import (
	"strings"

	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
)

// Method selects the frequency estimator
type Method string

const (
	MethodAutocorrelation Method = "Autocorrelation"
	MethodFFT             Method = "FFT"
)

// ParseMethod matches a method name case-insensitively
func ParseMethod(name string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "autocorrelation", "acf":
		return MethodAutocorrelation, true
	case "fft", "spectral":
		return MethodFFT, true
	default:
		return MethodFFT, false
	}
}

// Detection band and candidate set size shared by both estimators
const (
	MinDetectFrequency = 50.0
	MaxDetectFrequency = 1500.0
	CandidatePeaks     = 5
)

// DetectorParams configures a Detector. Changing any of them means building a new one.
type DetectorParams struct {
	SampleRate    int
	FrameSize     int
	PaddingFactor int
	ReferenceA4   float64
}

// Detection is the outcome of analyzing one frame
type Detection struct {
	Frequency  float64 // best candidate, valid when Found
	Confidence float64 // note probability of the candidate in [0, 1]
	Found      bool
	Peaks      []harmonic.Peak // candidate peaks for display, detector-specific order
}

// Detector estimates the fundamental of one frame of normalized samples.
// Implementations keep private scratch buffers and are not safe for concurrent use.
type Detector interface {
	Detect(frame []float64) Detection
	Method() Method
}

// NewDetector builds the estimator for method
func NewDetector(method Method, params DetectorParams) Detector {
	if method == MethodAutocorrelation {
		return NewAutocorrelationDetector(params)
	}
	return NewSpectralDetector(params)
}
