package fusion

import (
	"math"
	"math/rand"
	"testing"
)

func TestFuseDefault(t *testing.T) {
	if got := DefaultWeights.Fuse(1, 1, 1); math.Abs(got-1) > 1e-12 {
		t.Fatalf("all ones must fuse to 1, got %v", got)
	}
	if got := DefaultWeights.Fuse(0, 0.6, 0.9); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("thirds: got %v, want 0.5", got)
	}
	if got := DefaultWeights.Fuse(-3, 7, math.NaN()); got < 0 || got > 1 {
		t.Fatalf("out of range inputs must still fuse into [0,1], got %v", got)
	}
}

func TestFuseMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	weights := []Weights{DefaultWeights, {Equation: 0.5, SBERT: 0.25, E5: 0.25}, {Equation: 0, SBERT: 1, E5: 0}}
	for _, w := range weights {
		for i := 0; i < 500; i++ {
			s := [3]float64{r.Float64(), r.Float64(), r.Float64()}
			base := w.Fuse(s[0], s[1], s[2])
			k := r.Intn(3)
			up := s
			up[k] += r.Float64() * (1 - s[k])
			if got := w.Fuse(up[0], up[1], up[2]); got < base {
				t.Fatalf("weights %+v: raising input %d from %v to %v lowered %v -> %v", w, k, s[k], up[k], base, got)
			}
		}
	}
}

func TestWeightsValidate(t *testing.T) {
	bad := []Weights{
		{},
		{Equation: -1, SBERT: 1, E5: 1},
		{Equation: math.NaN(), SBERT: 1, E5: 1},
		{Equation: math.Inf(1)},
	}
	for _, w := range bad {
		if err := w.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", w)
		}
	}
	if err := (Weights{Equation: 2, SBERT: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
