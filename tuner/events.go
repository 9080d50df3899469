package tuner

import (
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

// EventKind names an engine event
type EventKind string

const (
	KindLevel  EventKind = "level"
	KindPeaks  EventKind = "peaks"
	KindNote   EventKind = "note"
	KindConfig EventKind = "config"
)

// Event is published to the presentation layer when a value changes.
// Within one processing cycle the order is level, peaks, note.
type Event interface {
	Kind() EventKind
}

// LevelUpdated carries the latest frame level in dBFS
type LevelUpdated struct {
	Level float64
}

// PeaksUpdated carries the trimmed, amplitude-normalized peak list
type PeaksUpdated struct {
	Peaks []PublishedPeak
}

// NoteUpdated carries a newly accepted stable note
type NoteUpdated struct {
	Note tonal.NoteResult
}

// ConfigChanged carries the effective configuration after a setter or format fallback
type ConfigChanged struct {
	Config Config
}

func (LevelUpdated) Kind() EventKind  { return KindLevel }
func (PeaksUpdated) Kind() EventKind  { return KindPeaks }
func (NoteUpdated) Kind() EventKind   { return KindNote }
func (ConfigChanged) Kind() EventKind { return KindConfig }

// PublishedPeak is one entry of the displayed peak list
type PublishedPeak struct {
	Frequency     float64 `json:"frequency"`
	Amplitude     float64 `json:"amplitude"` // normalized to [0, 1]
	HarmonicCount int     `json:"harmonic_count"`
}

// Handler receives events. It runs on the capture goroutine and must not call
// engine setters, Start, Stop or Reload synchronously.
type Handler func(Event)

// ChannelHandler forwards events to ch without blocking; events are dropped when ch is full
func ChannelHandler(ch chan<- Event) Handler {
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}
}
