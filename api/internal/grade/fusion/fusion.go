// Package fusion combines the equation and semantic scores into one grade.
package fusion

import (
	"errors"
	"fmt"
	"math"

	"echo-grade/api/internal/util"
)

// Weights of the three signals. They are relative: Fuse divides by their
// sum, so {1,1,1} and {2,2,2} grade the same.
type Weights struct {
	Equation float64 `yaml:"equation" json:"equation"`
	SBERT    float64 `yaml:"sbert" json:"sbert"`
	E5       float64 `yaml:"e5" json:"e5"`
}

// DefaultWeights splits the grade into equal thirds.
var DefaultWeights = Weights{Equation: 1, SBERT: 1, E5: 1}

// Validate requires finite non-negative weights with a positive sum; that is
// what keeps Fuse monotonic and inside [0,1].
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"equation": w.Equation, "sbert": w.SBERT, "e5": w.E5} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("fusion weight %s must be a finite non-negative number, got %v", name, v)
		}
	}
	if w.Sum() <= 0 {
		return errors.New("fusion weights must not all be zero")
	}
	return nil
}

func (w Weights) Sum() float64 { return w.Equation + w.SBERT + w.E5 }

// Fuse is the weighted mean of the clamped scores.
func (w Weights) Fuse(equation, sbert, e5 float64) float64 {
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	v := (w.Equation*util.Clamp01(equation) + w.SBERT*util.Clamp01(sbert) + w.E5*util.Clamp01(e5)) / sum
	return util.Clamp01(v)
}
