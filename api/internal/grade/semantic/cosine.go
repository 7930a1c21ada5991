package semantic

import (
	"math"

	"echo-grade/api/internal/util"
)

// Cosine is the raw cosine similarity in [-1,1]. Zero vectors and vectors of
// different length score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ClampedCosine is Cosine pinned to [0,1]: anti-correlated texts are simply
// dissimilar.
func ClampedCosine(a, b []float64) float64 {
	return util.Clamp01(Cosine(a, b))
}
