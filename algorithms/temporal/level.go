package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SilenceFloorDB is the level reported for silent or empty frames
const SilenceFloorDB = -90.0

// LevelMeter measures frame loudness in dBFS and gates detection on a threshold
type LevelMeter struct {
	thresholdDB float64
}

// NewLevelMeter creates a meter gating at thresholdDB
func NewLevelMeter(thresholdDB float64) *LevelMeter {
	return &LevelMeter{thresholdDB: thresholdDB}
}

// Threshold returns the gate level in dBFS
func (lm *LevelMeter) Threshold() float64 {
	return lm.thresholdDB
}

// SetThreshold changes the gate level
func (lm *LevelMeter) SetThreshold(thresholdDB float64) {
	lm.thresholdDB = thresholdDB
}

// Level returns 20*log10(rms) of the frame, floored at SilenceFloorDB
func (lm *LevelMeter) Level(frame []float64) float64 {
	return LevelDBFS(frame)
}

// Passes reports whether a frame at levelDB is loud enough for detection.
// A frame exactly at the threshold is gated.
func (lm *LevelMeter) Passes(levelDB float64) bool {
	return levelDB > lm.thresholdDB
}

// RMS returns the root mean square of the frame
func RMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(frame, frame) / float64(len(frame)))
}

// LevelDBFS converts the frame RMS to dBFS with a silence floor
func LevelDBFS(frame []float64) float64 {
	rms := RMS(frame)
	if rms <= 0 {
		return SilenceFloorDB
	}
	return math.Max(20*math.Log10(rms), SilenceFloorDB)
}
