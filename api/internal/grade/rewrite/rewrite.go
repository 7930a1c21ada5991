// Package rewrite replaces equation spans with plain-language descriptions so
// that text-only similarity models can compare the answers.
package rewrite

import (
	"sort"
	"strings"

	"echo-grade/api/internal/grade/types"
)

// Rewrite substitutes every located equation of text with its description.
// Spans are applied from the last offset to the first so that earlier
// offsets stay valid. Overlapping spans, or a span whose offset does not hold
// its raw text, return an *types.OverlapError and no partial result.
func Rewrite(text string, eqs []types.Equation) (string, error) {
	spans := make([]types.Equation, 0, len(eqs))
	for _, e := range eqs {
		if e.Located() && e.Raw != "" {
			spans = append(spans, e)
		}
	}
	if len(spans) == 0 {
		return text, nil
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Position > spans[j].Position })

	for i, e := range spans {
		if e.End() > len(text) || text[e.Position:e.End()] != e.Raw {
			return "", &types.OverlapError{First: e, Reason: "offset does not match text"}
		}
		if i > 0 && e.End() > spans[i-1].Position {
			return "", &types.OverlapError{First: e, Second: spans[i-1]}
		}
	}

	out := text
	for _, e := range spans {
		out = out[:e.Position] + Description(e) + out[e.End():]
	}
	return out, nil
}

// Description is the text an equation is replaced with: the model-supplied
// description when there is one, else a reading of the normalized form.
func Description(e types.Equation) string {
	if d := strings.TrimSpace(e.Description); d != "" {
		return d
	}
	return Describe(e.Form())
}
