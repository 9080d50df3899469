package tonal

import (
	"math"
	"testing"
)

func TestStabilityConfirmsOnThirdMatch(t *testing.T) {
	sf := NewStabilityFilter()
	candidates := []float64{220, 220 * math.Pow(2, 5.0/1200), 220 * math.Pow(2, -4.0/1200)}

	published := 0
	for i, f := range candidates {
		got, ok := sf.Offer(f, 0.5)
		if i < 2 && ok {
			t.Fatalf("published on candidate %d", i+1)
		}
		if ok {
			published++
			if got != 220 {
				t.Fatalf("published %v Hz, want the entry frequency 220", got)
			}
		}
	}

	if published != 1 {
		t.Fatalf("published %d times, want 1", published)
	}
}

func TestStabilityEntryFrequencyIsFixed(t *testing.T) {
	tests := []struct {
		name       string
		candidates []float64
		want       float64
	}{
		{"both sides of the entry", []float64{440, 443, 437}, 440},
		{"near the window edges", []float64{220, 220 * math.Pow(2, 14.5/1200), 220 * math.Pow(2, -14.5/1200)}, 220},
		{"repeated drift one way", []float64{330, 330 * math.Pow(2, 12.0/1200), 330 * math.Pow(2, 14.0/1200)}, 330},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf := NewStabilityFilter()
			var got float64
			var ok bool
			for _, f := range tt.candidates {
				got, ok = sf.Offer(f, 0.5)
			}

			if !ok || got != tt.want {
				t.Fatalf("third offer = %v, %v, want %v, true", got, ok, tt.want)
			}
			h := sf.History()
			if len(h) != 1 || h[0].Frequency != tt.want || h[0].Count != 3 {
				t.Fatalf("history = %+v, want one entry at %v with count 3", h, tt.want)
			}
		})
	}
}

func TestStabilityMatchWindowIsExclusive(t *testing.T) {
	sf := NewStabilityFilter()
	sf.Offer(440, 1)
	sf.Offer(440*math.Pow(2, 15.5/1200), 1)
	sf.Offer(440*math.Pow(2, -15.5/1200), 1)

	h := sf.History()
	if len(h) != 3 {
		t.Fatalf("history = %+v, want three separate entries", h)
	}
	if h[0].Count != 1 {
		t.Fatalf("first entry absorbed a candidate outside the window: %+v", h[0])
	}
}

func TestStabilityKeepsPublishingWhileHeld(t *testing.T) {
	sf := NewStabilityFilter()
	for i := 0; i < 2; i++ {
		sf.Offer(330, 0.4)
	}
	for i := 0; i < 5; i++ {
		if _, ok := sf.Offer(330, 0.4); !ok {
			t.Fatalf("held note not published on repeat %d", i)
		}
	}
}

func TestStabilityIgnoresOutOfBand(t *testing.T) {
	sf := NewStabilityFilter()
	sf.Offer(220, 1)
	sf.Offer(220*math.Pow(2, 20.0/1200), 1) // 20 cents away: new entry
	if _, ok := sf.Offer(220, 1); ok {
		t.Fatal("published after only two matching detections")
	}

	h := sf.History()
	if len(h) != 2 || h[0].Count != 2 || h[1].Count != 1 {
		t.Fatalf("unexpected history %+v", h)
	}
}

func TestStabilityEvictsOldest(t *testing.T) {
	sf := NewStabilityFilter()
	for i := 0; i < DefaultHistorySize+1; i++ {
		sf.Offer(100*math.Pow(2, float64(i)/12), 0.1)
	}

	h := sf.History()
	if len(h) != DefaultHistorySize {
		t.Fatalf("history length = %d, want %d", len(h), DefaultHistorySize)
	}
	if math.Abs(h[0].Frequency-100*math.Pow(2, 1.0/12)) > 1e-9 {
		t.Fatalf("oldest entry not evicted, first = %v", h[0].Frequency)
	}
}

func TestStabilityConfidenceAndReset(t *testing.T) {
	sf := NewStabilityFilter()
	sf.Offer(440, 0.2)
	sf.Offer(440, 0.9)
	sf.Offer(440, 0.1)

	if c := sf.History()[0].Confidence; c != 0.9 {
		t.Fatalf("confidence = %v, want the maximum 0.9", c)
	}

	sf.Reset()
	if len(sf.History()) != 0 {
		t.Fatal("reset left entries behind")
	}
	if _, ok := sf.Offer(440, 1); ok {
		t.Fatal("published right after reset")
	}
}

func TestStabilityRejectsInvalid(t *testing.T) {
	sf := NewStabilityFilter()
	for _, f := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if _, ok := sf.Offer(f, 1); ok {
			t.Fatalf("accepted %v", f)
		}
	}
	if len(sf.History()) != 0 {
		t.Fatal("invalid candidates were recorded")
	}
}
