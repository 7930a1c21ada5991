// Package extract pulls equation spans out of answer texts with the help of
// a generation capability.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/prompt"
)

type Extractor struct {
	gen types.Generator
}

func New(gen types.Generator) *Extractor {
	if gen == nil {
		panic("extract: generator is nil")
	}
	return &Extractor{gen: gen}
}

// Extract runs extraction on both texts independently.
func (x *Extractor) Extract(ctx context.Context, master, student string) (types.Extraction, error) {
	m, err := x.ExtractSide(ctx, "master", master)
	if err != nil {
		return types.Extraction{}, err
	}
	s, err := x.ExtractSide(ctx, "student", student)
	if err != nil {
		return types.Extraction{}, err
	}
	return types.Extraction{Master: m, Student: s}, nil
}

// ExtractSide is ExtractText with side recorded on the error.
func (x *Extractor) ExtractSide(ctx context.Context, side, text string) ([]types.Equation, error) {
	eqs, err := x.ExtractText(ctx, text)
	if err != nil {
		return nil, withSide(err, side)
	}
	return eqs, nil
}

// ExtractText returns the equations of one text ordered by position.
// Blank text yields an empty slice without a model call. A generator failure
// or a reply that does not parse is an *types.ExtractionError.
func (x *Extractor) ExtractText(ctx context.Context, text string) ([]types.Equation, error) {
	if strings.TrimSpace(text) == "" {
		return []types.Equation{}, nil
	}
	raw, err := x.gen.Generate(ctx, prompt.Extraction(text))
	if err != nil {
		return nil, &types.ExtractionError{Err: fmt.Errorf("%w: %w", types.ErrGeneration, err)}
	}
	reply, err := prompt.DecodeExtract(raw)
	if err != nil {
		return nil, &types.ExtractionError{Err: err}
	}
	return Locate(text, reply), nil
}

// Locate turns the model reply into positioned equations. Longer spans are
// placed first; each takes the first occurrence in text that does not
// intersect a span already placed. A span whose every occurrence is taken
// keeps its first one, so a nested reply still surfaces as an overlap, unless
// an identical span was already placed; such a repeat is dropped. Spans that
// cannot be found keep Position -1 and sort last in reply order.
func Locate(text string, reply prompt.ExtractReply) []types.Equation {
	type placement struct {
		eq    types.Equation
		index int
	}
	order := make([]int, len(reply.Equations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(strings.TrimSpace(reply.Equations[order[a]].Equation)) >
			len(strings.TrimSpace(reply.Equations[order[b]].Equation))
	})

	got := make([]placement, 0, len(order))
	var out []types.Equation
	missing := map[string]bool{}
	placed := map[string]bool{}
	for _, idx := range order {
		item := reply.Equations[idx]
		raw := strings.TrimSpace(item.Equation)
		if raw == "" {
			continue
		}
		pos, first := free(text, raw, out)
		switch {
		case pos >= 0:
		case first < 0:
			if missing[raw] {
				continue
			}
			missing[raw] = true
		case placed[raw]:
			continue
		default:
			pos = first
		}
		if pos >= 0 {
			placed[raw] = true
		}
		eq := types.Equation{
			Raw:         raw,
			Position:    pos,
			Description: strings.TrimSpace(item.Description),
		}
		out = append(out, eq)
		got = append(got, placement{eq: eq, index: idx})
	}
	sort.SliceStable(got, func(i, j int) bool {
		pi, pj := got[i].eq.Position, got[j].eq.Position
		if pi < 0 || pj < 0 {
			if pi < 0 && pj < 0 {
				return got[i].index < got[j].index
			}
			return pi >= 0
		}
		return pi < pj
	})
	res := make([]types.Equation, len(got))
	for i, p := range got {
		res[i] = p.eq
	}
	return res
}

// free returns the first occurrence of raw in text clear of every placed
// span, and the first occurrence overall. Either is -1 when absent.
func free(text, raw string, placed []types.Equation) (pos, first int) {
	pos, first = -1, -1
	for from := 0; from <= len(text)-len(raw); {
		i := strings.Index(text[from:], raw)
		if i < 0 {
			break
		}
		at := from + i
		if first < 0 {
			first = at
		}
		if !intersects(placed, at, at+len(raw)) {
			return at, first
		}
		from = at + 1
	}
	return pos, first
}

func intersects(placed []types.Equation, start, end int) bool {
	for _, e := range placed {
		if e.Position >= 0 && start < e.Position+len(e.Raw) && e.Position < end {
			return true
		}
	}
	return false
}

func withSide(err error, side string) error {
	var xe *types.ExtractionError
	if errors.As(err, &xe) {
		xe.Side = side
		return xe
	}
	return err
}
