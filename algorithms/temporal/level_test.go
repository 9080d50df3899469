package temporal

import (
	"math"
	"testing"
)

func TestLevelSilenceFloor(t *testing.T) {
	lm := NewLevelMeter(-70)

	if got := lm.Level(make([]float64, 1024)); got != SilenceFloorDB {
		t.Fatalf("zero frame level = %v, want %v", got, SilenceFloorDB)
	}
	if got := lm.Level(nil); got != SilenceFloorDB {
		t.Fatalf("empty frame level = %v, want %v", got, SilenceFloorDB)
	}

	tiny := make([]float64, 64)
	tiny[0] = 1e-12
	if got := lm.Level(tiny); got != SilenceFloorDB {
		t.Fatalf("near-silent frame level = %v, want floor", got)
	}
}

func TestLevelFullScaleSine(t *testing.T) {
	const n = 48000
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}

	got := LevelDBFS(frame)
	if math.Abs(got-(-3.0103)) > 0.1 {
		t.Fatalf("full-scale sine level = %.3f dBFS, want about -3.01", got)
	}
}

func TestLevelMeterGate(t *testing.T) {
	lm := NewLevelMeter(-40)

	tests := []struct {
		level float64
		want  bool
	}{
		{-90, false},
		{-40, false},
		{-39.9, true},
		{0, true},
	}

	for _, tt := range tests {
		if got := lm.Passes(tt.level); got != tt.want {
			t.Errorf("Passes(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}

	lm.SetThreshold(-20)
	if lm.Passes(-30) {
		t.Fatal("threshold change not applied")
	}
}
