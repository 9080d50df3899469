package tonal

import (
	"math"
)

// Stability filter defaults
const (
	DefaultHistorySize  = 5
	DefaultMatchCents   = 15.0
	DefaultConfirmCount = 3
)

// HistoryEntry is one frequency band the filter has seen recently.
// Frequency is the candidate that opened the entry and never moves.
type HistoryEntry struct {
	Frequency  float64 `json:"frequency"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"`
}

// StabilityFilter debounces per-frame candidates: a frequency is published only once
// DefaultConfirmCount detections landed within DefaultMatchCents of the same entry.
type StabilityFilter struct {
	history      []HistoryEntry
	capacity     int
	matchCents   float64
	confirmCount int
}

// NewStabilityFilter creates a filter with the default history size and thresholds
func NewStabilityFilter() *StabilityFilter {
	return &StabilityFilter{
		history:      make([]HistoryEntry, 0, DefaultHistorySize+1),
		capacity:     DefaultHistorySize,
		matchCents:   DefaultMatchCents,
		confirmCount: DefaultConfirmCount,
	}
}

// Offer records a candidate and returns the matched entry's frequency once it is confirmed.
// The first entry within the match window absorbs the candidate; otherwise a new entry is
// appended and the oldest is evicted beyond capacity.
func (sf *StabilityFilter) Offer(frequency, confidence float64) (float64, bool) {
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return 0, false
	}

	for i := range sf.history {
		entry := &sf.history[i]
		if math.Abs(CentsBetween(frequency, entry.Frequency)) >= sf.matchCents {
			continue
		}

		entry.Count++
		entry.Confidence = math.Max(entry.Confidence, confidence)

		if entry.Count >= sf.confirmCount {
			return entry.Frequency, true
		}
		return 0, false
	}

	sf.history = append(sf.history, HistoryEntry{Frequency: frequency, Count: 1, Confidence: confidence})
	if len(sf.history) > sf.capacity {
		sf.history = append(sf.history[:0], sf.history[1:]...)
	}

	return 0, false
}

// History returns a copy of the current entries, oldest first
func (sf *StabilityFilter) History() []HistoryEntry {
	out := make([]HistoryEntry, len(sf.history))
	copy(out, sf.history)
	return out
}

// Reset forgets every entry
func (sf *StabilityFilter) Reset() {
	sf.history = sf.history[:0]
}
