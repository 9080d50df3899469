package spectral

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Radix2 is a recursive even/odd radix-2 FFT working on a fixed power-of-two size.
// Twiddles and scratch space are allocated once, so Transform never allocates.
// A Radix2 must not be shared between goroutines.
type Radix2 struct {
	size     int
	twiddles []complex128 // exp(-2*pi*i*k/size) for k < size/2
	scratch  []complex128
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1)
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// NewRadix2 creates a transform for NextPowerOfTwo(size) points
func NewRadix2(size int) *Radix2 {
	n := NextPowerOfTwo(size)
	tw := make([]complex128, n/2)
	for k := range tw {
		angle := -2 * math.Pi * float64(k) / float64(n)
		tw[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	return &Radix2{
		size:     n,
		twiddles: tw,
		scratch:  make([]complex128, n),
	}
}

// Size returns the transform length
func (r *Radix2) Size() int {
	return r.size
}

// Transform computes the forward DFT of data in place. len(data) must equal Size().
func (r *Radix2) Transform(data []complex128) error {
	if len(data) != r.size {
		return fmt.Errorf("fft input length (%d) doesn't match transform size (%d)", len(data), r.size)
	}
	r.transform(data, r.scratch)
	return nil
}

// transform splits x into even and odd halves stored in scratch, transforms each half
// using the matching half of x as its own scratch, then recombines into x.
func (r *Radix2) transform(x, scratch []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	half := n / 2
	even := scratch[:half]
	odd := scratch[half:n]
	for i := 0; i < half; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	r.transform(even, x[:half])
	r.transform(odd, x[half:n])

	stride := r.size / n
	for k := 0; k < half; k++ {
		t := r.twiddles[k*stride] * odd[k]
		x[k] = even[k] + t
		x[k+half] = even[k] - t
	}
}

// Magnitudes writes |X[k]| for k in [0, len(dst)) into dst
func Magnitudes(spectrum []complex128, dst []float64) {
	for k := range dst {
		dst[k] = cmplx.Abs(spectrum[k])
	}
}

// Reference computes a real-input FFT with mjibson/go-dsp.
// It handles any length and allocates; used to cross-check Radix2.
func Reference(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// MaxDeviation compares Radix2 against Reference on x and returns the largest bin error.
// x is zero-padded to the transform size.
func (r *Radix2) MaxDeviation(x []float64) (float64, error) {
	if len(x) > r.size {
		return 0, fmt.Errorf("input length (%d) exceeds transform size (%d)", len(x), r.size)
	}

	padded := make([]float64, r.size)
	copy(padded, x)

	data := make([]complex128, r.size)
	for i, v := range padded {
		data[i] = complex(v, 0)
	}
	if err := r.Transform(data); err != nil {
		return 0, err
	}

	ref := Reference(padded)
	maxDiff := 0.0
	for i := range data {
		maxDiff = math.Max(maxDiff, cmplx.Abs(data[i]-ref[i]))
	}
	return maxDiff, nil
}
