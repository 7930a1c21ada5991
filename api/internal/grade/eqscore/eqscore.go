// Package eqscore compares master equations against student equations.
package eqscore

import (
	"context"
	"log"

	"echo-grade/api/internal/grade/semantic"
	"echo-grade/api/internal/grade/types"
)

// NoEquationsExpected is the equation score when the master answer has no
// equations: nothing was expected, so nothing is missing.
const NoEquationsExpected = 1.0

type Result struct {
	Score  float64              `json:"final_equation_score"`
	Matrix types.FeedbackMatrix `json:"feedback_matrix"`
}

// Score builds the |master|×|student| similarity matrix and reduces it: each
// master equation takes its best student match (ties go to the lowest student
// index) and the matches are averaged. A master equation with no student
// equation contributes 0. An embedding failure zeroes the pairs of that
// equation and never aborts the pass.
func Score(ctx context.Context, master, student []types.Equation, e types.Embedder) Result {
	m := types.FeedbackMatrix{
		Master:  forms(master),
		Student: forms(student),
		Scores:  make([][]float64, len(master)),
		Best:    make([]types.PairScore, len(master)),
	}
	if len(master) == 0 {
		return Result{Score: NoEquationsExpected, Matrix: m}
	}

	cache := map[string][]float64{}
	embed := func(text string) []float64 {
		if v, ok := cache[text]; ok {
			return v
		}
		v, err := e.Embed(ctx, text)
		if err != nil {
			log.Printf("eqscore: embed %q: %v (pairs scored 0)", text, err)
			v = nil
		}
		cache[text] = v
		return v
	}

	sv := make([][]float64, len(student))
	for j, s := range m.Student {
		sv[j] = embed(s)
	}

	var sum float64
	for i, mf := range m.Master {
		mv := embed(mf)
		row := make([]float64, len(student))
		best := types.PairScore{MasterIndex: i, StudentIndex: -1}
		for j := range student {
			if mv != nil && sv[j] != nil {
				row[j] = semantic.ClampedCosine(mv, sv[j])
			}
			if best.StudentIndex < 0 || row[j] > best.Similarity {
				best.StudentIndex, best.Similarity = j, row[j]
			}
		}
		m.Scores[i] = row
		m.Best[i] = best
		sum += best.Similarity
	}
	return Result{Score: sum / float64(len(master)), Matrix: m}
}

func forms(eqs []types.Equation) []string {
	out := make([]string, len(eqs))
	for i, e := range eqs {
		out[i] = e.Form()
	}
	return out
}
