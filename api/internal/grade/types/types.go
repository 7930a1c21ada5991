package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Answer is one stored answer text.
type Answer struct {
	QuestionID string `json:"questionId"`
	AuthorID   string `json:"authorId"`
	Text       string `json:"answerText"`
}

// StudentAnswer is a row returned by the answer store for one student.
type StudentAnswer struct {
	StudentID string `json:"student_id" validate:"required"`
	Text      string `json:"answer_text"`
}

// Equation is an extracted equation span.
// Position is the byte offset of Raw in the source text, -1 when the span
// could not be located.
type Equation struct {
	Raw         string `json:"raw"`
	Position    int    `json:"position"`
	Normalized  string `json:"normalized,omitempty"`
	Description string `json:"description,omitempty"`
}

// End returns the offset right after the span.
func (e Equation) End() int { return e.Position + len(e.Raw) }

// Located reports whether the span has a usable offset.
func (e Equation) Located() bool { return e.Position >= 0 }

// Form is the text compared between equations: the normalized form, or the
// raw span when normalization has not run.
func (e Equation) Form() string {
	if e.Normalized != "" {
		return e.Normalized
	}
	return e.Raw
}

// Extraction holds both sides of one (master, student) pair.
type Extraction struct {
	Master  []Equation `json:"master_extractions"`
	Student []Equation `json:"student_extractions"`
}

type PairScore struct {
	MasterIndex  int     `json:"master_index"`
	StudentIndex int     `json:"student_index"` // -1 when no student equation exists
	Similarity   float64 `json:"similarity"`
}

// FeedbackMatrix is the dense |master|×|student| similarity matrix plus the best
// student match for every master equation.
type FeedbackMatrix struct {
	Master  []string    `json:"master"`
	Student []string    `json:"student"`
	Scores  [][]float64 `json:"scores"`
	Best    []PairScore `json:"best"`
}

// Unmatched lists master equations whose best similarity is below threshold.
func (m FeedbackMatrix) Unmatched(threshold float64) []string {
	var out []string
	for _, b := range m.Best {
		if b.StudentIndex < 0 || b.Similarity < threshold {
			out = append(out, m.Master[b.MasterIndex])
		}
	}
	return out
}

type ScoreBundle struct {
	EquationScore float64 `json:"equation_score"`
	SBERTScore    float64 `json:"sbert_score"`
	E5Score       float64 `json:"e5_score"`
	FinalScore    float64 `json:"final_score"`
}

// FeedbackDetails is the structured explanation rendered by the frontend.
type FeedbackDetails struct {
	ScoreOutOf10       float64  `json:"score_out_of_10"`
	Verdict            string   `json:"verdict"`
	Comment            string   `json:"comment"`
	Advice             string   `json:"advice"`
	UnmatchedEquations []string `json:"unmatched_equations"`
	Fallback           bool     `json:"fallback,omitempty"`
}

// Text renders the details as the plain explanation stored in
// AnalysisResult.Feedback.
func (d FeedbackDetails) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score: %.1f/10", d.ScoreOutOf10)
	if d.Verdict != "" {
		fmt.Fprintf(&b, " (%s)", d.Verdict)
	}
	b.WriteString(".")
	if c := strings.TrimSpace(d.Comment); c != "" {
		b.WriteString(" ")
		b.WriteString(c)
	}
	if len(d.UnmatchedEquations) > 0 {
		b.WriteString(" Missing equations: ")
		b.WriteString(strings.Join(d.UnmatchedEquations, "; "))
		b.WriteString(".")
	}
	if a := strings.TrimSpace(d.Advice); a != "" {
		b.WriteString(" Advice: ")
		b.WriteString(a)
	}
	return b.String()
}

// AnalysisResult is one graded student answer.
type AnalysisResult struct {
	StudentID  string           `json:"student_id"`
	FinalScore float64          `json:"final_score"`
	Feedback   string           `json:"feedback"`
	Scores     ScoreBundle      `json:"scores"`
	Details    *FeedbackDetails `json:"feedback_details,omitempty"`
	Degraded   bool             `json:"degraded,omitempty"`
	Notes      []string         `json:"notes,omitempty"`
}

type QuestionReport struct {
	QuestionID string           `json:"questionId"`
	Results    []AnalysisResult `json:"results"`
}

type ErrorReport struct {
	Error string `json:"error"`
}

// --- capabilities ------------------------------------------------------------

// Generator is a free-text generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Capabilities are the process-wide model handles. They are built once by
// the host and shared read-only by every request.
type Capabilities struct {
	Generator        Generator
	EquationEmbedder Embedder
	SBERT            Embedder
	E5               Embedder
}

func (c Capabilities) Validate() error {
	switch {
	case c.Generator == nil:
		return errors.New("capabilities: generator is nil")
	case c.EquationEmbedder == nil:
		return errors.New("capabilities: equation embedder is nil")
	case c.SBERT == nil:
		return errors.New("capabilities: sbert embedder is nil")
	case c.E5 == nil:
		return errors.New("capabilities: e5 embedder is nil")
	}
	return nil
}

// --- errors ------------------------------------------------------------------

var (
	ErrNotFound         = errors.New("not found")
	ErrMasterNotFound   = fmt.Errorf("master answer: %w", ErrNotFound)
	ErrNoStudentAnswers = fmt.Errorf("student answers: %w", ErrNotFound)

	ErrExtraction = errors.New("equation extraction failed")
	ErrOverlap    = errors.New("overlapping equation spans")
	ErrParse      = errors.New("unparsable model output")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("generation failed")
)

// ExtractionError is returned when the generation capability cannot be
// used to extract equations. Side is "master" or "student".
type ExtractionError struct {
	Side string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("%v: %v", ErrExtraction, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", ErrExtraction, e.Side, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// OverlapError reports two equation spans that share bytes. A span whose
// offset does not fit the text is reported with Reason set and Second empty.
type OverlapError struct {
	First, Second Equation
	Reason        string
}

func (e *OverlapError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: span %q at %d: %s", ErrOverlap, e.First.Raw, e.First.Position, e.Reason)
	}
	return fmt.Sprintf("%v: %q at %d overlaps %q at %d",
		ErrOverlap, e.First.Raw, e.First.Position, e.Second.Raw, e.Second.Position)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }
