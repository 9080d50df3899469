package tonal

import "math"

// partial is one sinusoid in a synthetic test tone
type partial struct {
	freq float64
	amp  float64
}

func synth(sampleRate, n int, partials ...partial) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		for _, p := range partials {
			out[i] += p.amp * math.Sin(2*math.Pi*p.freq*t)
		}
	}
	return out
}
