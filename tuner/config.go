package tuner

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

// Engine defaults
const (
	DefaultSampleRate  = 48000
	DefaultBufferSize  = 8112
	DefaultMaxPeaks    = 10
	DefaultFFTPadding  = 2
	DefaultDBThreshold = -70.0
)

// Configuration bounds; out-of-range values are clamped, never rejected
const (
	MinSampleRate  = 8000
	MaxSampleRate  = 192000
	MinBufferSize  = 256
	MaxBufferSize  = 65536
	MaxPeaksLimit  = 64
	MinReferenceA4 = 400.0
	MaxReferenceA4 = 480.0
	MinDBThreshold = -90.0
	MaxDBThreshold = 0.0
)

// Config holds every engine setting
type Config struct {
	SampleRate      int          `json:"sample_rate"`
	BufferSize      int          `json:"buffer_size"`
	MaxPeaks        int          `json:"max_peaks"`
	ReferenceA4     float64      `json:"reference_a4"`
	DetectionMethod tonal.Method `json:"detection_method"`
	FFTPadding      int          `json:"fft_padding"`
	DBThreshold     float64      `json:"db_threshold"`
}

// DefaultConfig returns the settings used for a cello-range tuner
func DefaultConfig() Config {
	return Config{
		SampleRate:      DefaultSampleRate,
		BufferSize:      DefaultBufferSize,
		MaxPeaks:        DefaultMaxPeaks,
		ReferenceA4:     tonal.DefaultReferenceA4,
		DetectionMethod: tonal.MethodFFT,
		FFTPadding:      DefaultFFTPadding,
		DBThreshold:     DefaultDBThreshold,
	}
}

// Normalize clamps every field into range and lists the adjusted fields.
// maxSampleRate is the capture device limit; 0 means unknown.
func (c Config) Normalize(maxSampleRate int) (Config, []string) {
	var adjusted []string
	note := func(field string, from, to any) {
		adjusted = append(adjusted, fmt.Sprintf("%s: %v -> %v", field, from, to))
	}

	rateCeiling := MaxSampleRate
	if maxSampleRate > 0 {
		rateCeiling = min(rateCeiling, max(maxSampleRate, MinSampleRate))
	}
	if v := clampInt(c.SampleRate, MinSampleRate, rateCeiling); v != c.SampleRate {
		note("sample_rate", c.SampleRate, v)
		c.SampleRate = v
	}
	if v := clampInt(c.BufferSize, MinBufferSize, MaxBufferSize); v != c.BufferSize {
		note("buffer_size", c.BufferSize, v)
		c.BufferSize = v
	}
	if v := clampInt(c.MaxPeaks, 0, MaxPeaksLimit); v != c.MaxPeaks {
		note("max_peaks", c.MaxPeaks, v)
		c.MaxPeaks = v
	}
	if v := clampFloat(c.ReferenceA4, MinReferenceA4, MaxReferenceA4); v != c.ReferenceA4 {
		note("reference_a4", c.ReferenceA4, v)
		c.ReferenceA4 = v
	}
	if m, ok := tonal.ParseMethod(string(c.DetectionMethod)); !ok || m != c.DetectionMethod {
		if !ok {
			note("detection_method", c.DetectionMethod, m)
		}
		c.DetectionMethod = m
	}
	if v := clampInt(c.FFTPadding, tonal.MinPaddingFactor, tonal.MaxPaddingFactor); v != c.FFTPadding {
		note("fft_padding", c.FFTPadding, v)
		c.FFTPadding = v
	}
	if v := clampFloat(c.DBThreshold, MinDBThreshold, MaxDBThreshold); v != c.DBThreshold {
		note("db_threshold", c.DBThreshold, v)
		c.DBThreshold = v
	}

	return c, adjusted
}

// LoadConfig reads a JSON file over the defaults. Missing fields keep their default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func (c Config) detectorParams() tonal.DetectorParams {
	return tonal.DetectorParams{
		SampleRate:    c.SampleRate,
		FrameSize:     c.BufferSize,
		PaddingFactor: c.FFTPadding,
		ReferenceA4:   c.ReferenceA4,
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return min(max(v, lo), hi)
}
