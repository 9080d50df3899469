package tonal

import (
	"fmt"
	"math"
)

// DefaultReferenceA4 is the concert pitch used when no reference is configured
const DefaultReferenceA4 = 440.0

// InTuneCents is the deviation still reported as in tune
const InTuneCents = 5.0

// NoteNames lists the pitch classes starting at C
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteResult is a frequency mapped onto the equal-tempered scale
type NoteResult struct {
	Name      string  `json:"name"`      // pitch class and octave, e.g. "A4"
	Frequency float64 `json:"frequency"` // Hz
	Cents     float64 `json:"cents"`     // deviation in (-50, 50]
}

// Guidance is a tuning hint derived from the cents deviation
type Guidance int

const (
	InTune Guidance = iota
	Sharp
	Flat
)

func (g Guidance) String() string {
	switch g {
	case InTune:
		return "in tune"
	case Sharp:
		return "sharp, lower the pitch"
	case Flat:
		return "flat, raise the pitch"
	default:
		return "unknown"
	}
}

// Guidance returns whether the note is in tune, sharp or flat
func (n NoteResult) Guidance() Guidance {
	switch {
	case math.Abs(n.Cents) < InTuneCents:
		return InTune
	case n.Cents > 0:
		return Sharp
	default:
		return Flat
	}
}

// NoteMapper converts frequencies to note names relative to a reference A4
type NoteMapper struct {
	referenceA4 float64
}

// NewNoteMapper creates a mapper; a non-positive reference falls back to 440 Hz
func NewNoteMapper(referenceA4 float64) *NoteMapper {
	if referenceA4 <= 0 {
		referenceA4 = DefaultReferenceA4
	}
	return &NoteMapper{referenceA4: referenceA4}
}

// ReferenceA4 returns the reference pitch in Hz
func (nm *NoteMapper) ReferenceA4() float64 {
	return nm.referenceA4
}

// HalfSteps returns the signed semitone distance from A4 and its nearest integer.
// Rounding is ceil(h-0.5), so an exact half step resolves to the lower note.
func (nm *NoteMapper) HalfSteps(frequency float64) (float64, int) {
	h := 12 * math.Log2(frequency/nm.referenceA4)
	return h, int(math.Ceil(h - 0.5))
}

// Map converts a positive frequency to its nearest note and cents offset
func (nm *NoteMapper) Map(frequency float64) NoteResult {
	h, rounded := nm.HalfSteps(frequency)
	cents := 100 * (h - float64(rounded))

	fromC := rounded + 9
	noteIndex := (fromC%12 + 12) % 12
	octave := 4 + floorDiv(fromC, 12)

	return NoteResult{
		Name:      fmt.Sprintf("%s%d", NoteNames[noteIndex], octave),
		Frequency: frequency,
		Cents:     cents,
	}
}

// CentsOff returns the absolute cents distance to the nearest note
func (nm *NoteMapper) CentsOff(frequency float64) float64 {
	h, rounded := nm.HalfSteps(frequency)
	return math.Abs(100 * (h - float64(rounded)))
}

// NearestFrequency returns the equal-tempered frequency closest to frequency
func (nm *NoteMapper) NearestFrequency(frequency float64) float64 {
	_, rounded := nm.HalfSteps(frequency)
	return nm.referenceA4 * math.Pow(2, float64(rounded)/12)
}

// CentsBetween returns 1200*log2(a/b)
func CentsBetween(a, b float64) float64 {
	return 1200 * math.Log2(a/b)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
