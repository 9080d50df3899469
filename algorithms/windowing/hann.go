package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
)

// Hann is a symmetric Hann window, 0.5*(1-cos(2*pi*i/(N-1))), with cached coefficients
type Hann struct {
	size         int
	coefficients []float64
}

// NewHann creates a new Hann window of the given size
func NewHann(size int) *Hann {
	if size < 1 {
		size = 1
	}
	return &Hann{
		size:         size,
		coefficients: window.Hann(size),
	}
}

// ApplyComplex writes the windowed signal into the real parts of dst[:size]
func (h *Hann) ApplyComplex(signal []float64, dst []complex128) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}
	if len(dst) < h.size {
		return fmt.Errorf("destination length (%d) shorter than window size (%d)", len(dst), h.size)
	}

	for i := 0; i < h.size; i++ {
		dst[i] = complex(signal[i]*h.coefficients[i], 0)
	}

	return nil
}
