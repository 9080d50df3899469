package common

import (
	"encoding/binary"
)

// PCM16Scale maps signed 16-bit samples onto [-1, 1)
const PCM16Scale = 32768.0

// FrameBuilder accumulates little-endian signed 16-bit mono PCM bytes and slices
// them into fixed-size frames of normalized float samples.
// It is not safe for concurrent use; the owner serializes calls.
type FrameBuilder struct {
	frameSize int
	pending   []byte
}

// NewFrameBuilder creates a builder emitting frames of frameSize samples
func NewFrameBuilder(frameSize int) *FrameBuilder {
	if frameSize < 1 {
		frameSize = 1
	}
	return &FrameBuilder{
		frameSize: frameSize,
		pending:   make([]byte, 0, 4*frameSize),
	}
}

// FrameSize returns the number of samples per emitted frame
func (fb *FrameBuilder) FrameSize() int {
	return fb.frameSize
}

// Pending returns the number of buffered bytes not yet emitted as a frame
func (fb *FrameBuilder) Pending() int {
	return len(fb.pending)
}

// Push appends data and returns every complete frame now available, oldest first.
// Trailing bytes that do not fill a frame stay buffered for the next call.
func (fb *FrameBuilder) Push(data []byte) [][]float64 {
	fb.pending = append(fb.pending, data...)

	frameBytes := 2 * fb.frameSize
	count := len(fb.pending) / frameBytes
	if count == 0 {
		return nil
	}

	frames := make([][]float64, count)
	for f := 0; f < count; f++ {
		frames[f] = DecodePCM16(fb.pending[f*frameBytes:(f+1)*frameBytes], nil)
	}

	consumed := count * frameBytes
	remaining := copy(fb.pending, fb.pending[consumed:])
	fb.pending = fb.pending[:remaining]

	return frames
}

// Resize changes the frame size and drops any partially accumulated frame
func (fb *FrameBuilder) Resize(frameSize int) {
	if frameSize < 1 {
		frameSize = 1
	}
	fb.frameSize = frameSize
	fb.Reset()
}

// Reset drops all buffered bytes
func (fb *FrameBuilder) Reset() {
	fb.pending = fb.pending[:0]
}

// DecodePCM16 converts little-endian int16 bytes to normalized samples.
// dst is reused when it has enough capacity. An odd trailing byte is ignored.
func DecodePCM16(data []byte, dst []float64) []float64 {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[2*i:]))
		dst[i] = float64(s) / PCM16Scale
	}

	return dst
}

// EncodePCM16 converts samples in [-1, 1] to little-endian int16 bytes, clipping out-of-range values
func EncodePCM16(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := s * PCM16Scale
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
