package tonal

import (
	"math"
	"testing"
)

func TestNoteMapperKnownNotes(t *testing.T) {
	nm := NewNoteMapper(440)

	tests := []struct {
		freq float64
		name string
	}{
		{440, "A4"},
		{440 * math.Pow(2, 1.0/12), "A#4"},
		{220, "A3"},
		{261.6256, "C4"},
		{246.9417, "B3"},
		{65.4064, "C2"},
		{1046.5023, "C6"},
		{27.5, "A0"},
		{16.3516, "C0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nm.Map(tt.freq)
			if got.Name != tt.name {
				t.Fatalf("Map(%.4f) = %s, want %s", tt.freq, got.Name, tt.name)
			}
			if math.Abs(got.Cents) > 0.01 {
				t.Fatalf("Map(%.4f) cents = %.4f, want about 0", tt.freq, got.Cents)
			}
			if got.Frequency != tt.freq {
				t.Fatalf("frequency not carried through: %v", got.Frequency)
			}
		})
	}
}

func TestNoteMapperCentsRange(t *testing.T) {
	nm := NewNoteMapper(440)

	// a quarter tone above A4 lands on the boundary between A4 and A#4
	got := nm.Map(440 * math.Pow(2, 0.5/12))
	switch {
	case got.Name == "A4" && math.Abs(got.Cents-50) < 1e-6:
	case got.Name == "A#4" && math.Abs(got.Cents+50) < 1e-6 && got.Cents > -50:
	default:
		t.Fatalf("quarter tone above A4 = %s %+.6f", got.Name, got.Cents)
	}

	sharp := nm.Map(440 * math.Pow(2, 20.0/1200))
	if sharp.Name != "A4" || math.Abs(sharp.Cents-20) > 1e-6 {
		t.Fatalf("20 cents sharp = %s %+.4f", sharp.Name, sharp.Cents)
	}

	flat := nm.Map(440 * math.Pow(2, -30.0/1200))
	if flat.Name != "A4" || math.Abs(flat.Cents+30) > 1e-6 {
		t.Fatalf("30 cents flat = %s %+.4f", flat.Name, flat.Cents)
	}

	for f := 50.0; f < 1500; f *= 1.0137 {
		c := nm.Map(f).Cents
		if c <= -50 || c > 50 {
			t.Fatalf("cents %v out of (-50, 50] for %v Hz", c, f)
		}
	}
}

func TestNoteMapperReference(t *testing.T) {
	nm := NewNoteMapper(442)
	got := nm.Map(442)
	if got.Name != "A4" || math.Abs(got.Cents) > 1e-9 {
		t.Fatalf("Map(442) at A=442 = %s %+.4f", got.Name, got.Cents)
	}

	at440 := NewNoteMapper(440).Map(442)
	if math.Abs(at440.Cents-CentsBetween(442, 440)) > 1e-9 {
		t.Fatalf("cents at A=440 = %v", at440.Cents)
	}

	if NewNoteMapper(0).ReferenceA4() != DefaultReferenceA4 {
		t.Fatal("non-positive reference should fall back to 440")
	}
}

func TestNearestFrequencyAndCentsOff(t *testing.T) {
	nm := NewNoteMapper(440)

	if got := nm.NearestFrequency(225); math.Abs(got-220) > 1e-9 {
		t.Fatalf("NearestFrequency(225) = %v, want 220", got)
	}
	if got := nm.CentsOff(440 * math.Pow(2, -10.0/1200)); math.Abs(got-10) > 1e-6 {
		t.Fatalf("CentsOff = %v, want 10", got)
	}
}

func TestGuidance(t *testing.T) {
	tests := []struct {
		cents float64
		want  Guidance
	}{
		{0, InTune},
		{4.9, InTune},
		{-4.9, InTune},
		{12, Sharp},
		{-12, Flat},
	}
	for _, tt := range tests {
		if got := (NoteResult{Cents: tt.cents}).Guidance(); got != tt.want {
			t.Errorf("Guidance(%v) = %v, want %v", tt.cents, got, tt.want)
		}
	}
}

func TestFloorDiv(t *testing.T) {
	tests := [][3]int{{7, 12, 0}, {-3, 12, -1}, {-12, 12, -1}, {-13, 12, -2}, {12, 12, 1}}
	for _, tt := range tests {
		if got := floorDiv(tt[0], tt[1]); got != tt[2] {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tt[0], tt[1], got, tt[2])
		}
	}
}
