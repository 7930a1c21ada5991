package prompt

import (
	"encoding/json"
	"strings"
)

const extractSystem = `You are the EXTRACT module of an answer grading service.
Find every mathematical expression (equation, formula, inequality) in the TEXT below.
Rules:
1) VERBATIM. Copy each expression exactly as it appears in TEXT: same characters, same spaces.
   Do not rewrite, simplify or fix it. It must be a substring of TEXT.
2) One item per expression, in order of appearance. Do not return the same occurrence twice
   and do not return a part of an expression you already returned.
3) description: a short plain-English reading of the expression (max 15 words),
   e.g. "energy equals mass times the speed of light squared".
4) No expressions -> {"equations": []}.
Return ONLY JSON matching extract.schema.json. Any text outside JSON is an error.

extract.schema.json:
`

// Extraction builds the prompt that asks the generator for the equation
// spans of text.
func Extraction(text string) string {
	var b strings.Builder
	b.WriteString(extractSystem)
	b.WriteString(ExtractSchema)
	b.WriteString("\n\nTEXT:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>")
	return b.String()
}

const feedbackSystem = `You are a teacher explaining a grade to a student.
You get the master answer and the student answer with equations replaced by descriptions,
the pairwise similarity of their equations and the scores the grader computed:
- equation_score: how well the student's equations match the master equations (0..1)
- sbert_score, e5_score: semantic similarity of the two texts (0..1)
- final_score: the grade (0..1). score_out_of_10 must equal final_score*10 rounded to one decimal.
Do not change the grade. Explain it: what is right, what is missing, what to improve.
verdict: one of "excellent" | "good" | "partial" | "poor".
comment <= 600 chars, advice <= 400 chars. unmatched_equations: master equations the student missed.
Return ONLY JSON matching feedback.schema.json. Any text outside JSON is an error.

feedback.schema.json:
`

// Feedback builds the feedback prompt around the INPUT_JSON payload.
func Feedback(input any) string {
	js, _ := json.Marshal(input)
	var b strings.Builder
	b.WriteString(feedbackSystem)
	b.WriteString(FeedbackSchema)
	b.WriteString("\n\nINPUT_JSON:\n")
	b.Write(js)
	return b.String()
}
