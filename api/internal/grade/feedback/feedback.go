// Package feedback explains a computed grade to the student.
package feedback

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/prompt"
	"echo-grade/api/internal/util"
)

// MatchThreshold is the best-match similarity below which a master equation
// counts as missing from the student answer.
const MatchThreshold = 0.5

const (
	maxComment = 600
	maxAdvice  = 400
)

// Input is everything the explanation is built from.
type Input struct {
	Master  string               `json:"master_answer"`
	Student string               `json:"student_answer"`
	Matrix  types.FeedbackMatrix `json:"equation_matrix"`
	Scores  types.ScoreBundle    `json:"scores"`
}

type Generator struct {
	gen types.Generator
}

func New(gen types.Generator) *Generator {
	if gen == nil {
		panic("feedback: generator is nil")
	}
	return &Generator{gen: gen}
}

// Generate asks the model to explain the grade. It never fails: when the
// model is unreachable or its reply does not decode, the templated
// explanation is returned with Fallback set.
// The score and the unmatched list are always the computed ones; the model
// only contributes wording.
func (g *Generator) Generate(ctx context.Context, in Input) types.FeedbackDetails {
	raw, err := g.gen.Generate(ctx, prompt.Feedback(in))
	if err != nil {
		log.Printf("feedback: generate: %v (template used)", err)
		return Template(in)
	}
	reply, err := prompt.DecodeFeedback(raw)
	if err != nil {
		log.Printf("feedback: %v (template used)", err)
		return Template(in)
	}

	d := types.FeedbackDetails{
		ScoreOutOf10:       OutOf10(in.Scores.FinalScore),
		Verdict:            Verdict(in.Scores.FinalScore),
		Comment:            util.ClampRunes(strings.TrimSpace(reply.Comment), maxComment),
		Advice:             util.ClampRunes(strings.TrimSpace(reply.Advice), maxAdvice),
		UnmatchedEquations: unmatched(in.Matrix),
	}
	if reply.ScoreOutOf10 != nil && math.Abs(*reply.ScoreOutOf10-d.ScoreOutOf10) > 0.5 {
		log.Printf("feedback: model scored %.1f, grade is %.1f (kept grade)", *reply.ScoreOutOf10, d.ScoreOutOf10)
	}
	if d.Comment == "" {
		d.Comment = Template(in).Comment
	}
	return d
}

// Template is the deterministic explanation built from the numbers alone.
func Template(in Input) types.FeedbackDetails {
	s := in.Scores
	miss := unmatched(in.Matrix)

	var c strings.Builder
	fmt.Fprintf(&c, "Your answer scored %.0f%%. ", 100*util.Clamp01(s.FinalScore))
	switch n := len(in.Matrix.Master); {
	case n == 0:
		c.WriteString("No equations were expected. ")
	case len(miss) == 0:
		fmt.Fprintf(&c, "All %d expected equations were found. ", n)
	default:
		fmt.Fprintf(&c, "%d of %d expected equations were found. ", n-len(miss), n)
	}
	fmt.Fprintf(&c, "Equation match %.2f, meaning similarity %.2f (SBERT) and %.2f (E5).",
		s.EquationScore, s.SBERTScore, s.E5Score)

	var advice string
	switch {
	case len(miss) > 0:
		advice = "Write out the missing equations and explain how they are used."
	case math.Min(s.SBERTScore, s.E5Score) < 0.5:
		advice = "Explain the reasoning in more detail, following the steps of the model answer."
	case s.FinalScore < 0.85:
		advice = "Check the wording of each step against the model answer."
	default:
		advice = "Keep it up."
	}

	return types.FeedbackDetails{
		ScoreOutOf10:       OutOf10(s.FinalScore),
		Verdict:            Verdict(s.FinalScore),
		Comment:            c.String(),
		Advice:             advice,
		UnmatchedEquations: miss,
		Fallback:           true,
	}
}

// OutOf10 maps a [0,1] score onto 0..10 with one decimal.
func OutOf10(score float64) float64 {
	return math.Round(util.Clamp01(score)*100) / 10
}

func Verdict(score float64) string {
	switch s := util.Clamp01(score); {
	case s >= 0.85:
		return "excellent"
	case s >= 0.6:
		return "good"
	case s >= 0.35:
		return "partial"
	default:
		return "poor"
	}
}

func unmatched(m types.FeedbackMatrix) []string {
	out := m.Unmatched(MatchThreshold)
	if out == nil {
		out = []string{}
	}
	return out
}
