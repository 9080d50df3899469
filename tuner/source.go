package tuner

import "errors"

// ErrNoSource is returned by Start and Reload when no capture source is attached
var ErrNoSource = errors.New("no capture source configured")

// Format describes the PCM stream requested from, or delivered by, a capture source.
// Samples are always signed 16-bit little-endian mono.
type Format struct {
	SampleRate int
}

// Source is the capture collaborator. Start begins delivering PCM bytes to onData
// from its own goroutine and returns the format actually in use, which may differ
// from req when the device cannot honor it.
type Source interface {
	Start(req Format, onData func([]byte)) (Format, error)
	Stop() error
	// MaxSampleRate reports the highest rate the device supports, 0 if unknown
	MaxSampleRate() int
}
