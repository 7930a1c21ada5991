// Package semantic scores two descriptive texts with a sentence embedding
// capability.
package semantic

import (
	"context"
	"fmt"
	"strings"

	"echo-grade/api/internal/grade/types"
)

// Scorer is one similarity measure. Prefix is prepended to both texts before
// embedding; E5-family models expect "query: ".
type Scorer struct {
	Name     string
	Embedder types.Embedder
	Prefix   string
}

func New(name string, e types.Embedder, prefix string) Scorer {
	if e == nil {
		panic("semantic: embedder is nil for " + name)
	}
	return Scorer{Name: name, Embedder: e, Prefix: prefix}
}

// Similarity returns the clamped cosine similarity of a and b. Two blank
// texts are identical; one blank text matches nothing.
func (s Scorer) Similarity(ctx context.Context, a, b string) (float64, error) {
	ba, bb := strings.TrimSpace(a) == "", strings.TrimSpace(b) == ""
	switch {
	case ba && bb:
		return 1, nil
	case ba || bb:
		return 0, nil
	}
	va, err := s.Embedder.Embed(ctx, s.Prefix+a)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", s.Name, types.ErrEmbedding, err)
	}
	vb, err := s.Embedder.Embed(ctx, s.Prefix+b)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", s.Name, types.ErrEmbedding, err)
	}
	return ClampedCosine(va, vb), nil
}
