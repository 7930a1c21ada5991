// Package pipeline grades student answers against the master answer of a
// question: extract, normalize, score equations, rewrite, score meaning,
// fuse, explain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"echo-grade/api/internal/grade/eqscore"
	"echo-grade/api/internal/grade/extract"
	"echo-grade/api/internal/grade/feedback"
	"echo-grade/api/internal/grade/fusion"
	"echo-grade/api/internal/grade/normalize"
	"echo-grade/api/internal/grade/rewrite"
	"echo-grade/api/internal/grade/semantic"
	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/logging"
	"echo-grade/api/internal/metrics"
)

// Store is where answers are fetched from.
type Store interface {
	MasterAnswer(ctx context.Context, questionID string) (string, error)
	StudentAnswers(ctx context.Context, questionID, userID string) ([]types.StudentAnswer, error)
}

type Options struct {
	Weights     fusion.Weights
	SBERTPrefix string
	E5Prefix    string
	// Concurrent student extractions; below 1 means one at a time.
	ExtractParallel int
}

type Pipeline struct {
	store     Store
	weights   fusion.Weights
	extractor *extract.Extractor
	eqEmbed   types.Embedder
	sbert     semantic.Scorer
	e5        semantic.Scorer
	feedback  *feedback.Generator
	parallel  int
}

// New wires the pipeline. A nil capability is a programming error and
// panics. store may be nil when only AnalyzeAnswers and Compare are used.
// Invalid weights fall back to fusion.DefaultWeights.
func New(caps types.Capabilities, store Store, opt Options) *Pipeline {
	if err := caps.Validate(); err != nil {
		panic("pipeline: " + err.Error())
	}
	w := opt.Weights
	if err := w.Validate(); err != nil {
		log.Printf("pipeline: %v; using default weights", err)
		w = fusion.DefaultWeights
	}
	return &Pipeline{
		store:     store,
		weights:   w,
		extractor: extract.New(caps.Generator),
		eqEmbed:   caps.EquationEmbedder,
		sbert:     semantic.New("sbert", caps.SBERT, opt.SBERTPrefix),
		e5:        semantic.New("e5", caps.E5, opt.E5Prefix),
		feedback:  feedback.New(caps.Generator),
		parallel:  max(opt.ExtractParallel, 1),
	}
}

func (p *Pipeline) Weights() fusion.Weights { return p.weights }

// Analyze fetches the master answer of the question and the answers of the
// user and grades them. Missing data and extraction failures end the request
// before any student is graded.
func (p *Pipeline) Analyze(ctx context.Context, questionID, userID string) (types.QuestionReport, error) {
	if p.store == nil {
		return types.QuestionReport{}, errors.New("pipeline: no answer store configured")
	}
	ctx = ensureRequestID(ctx)
	rid := RequestID(ctx)

	start := time.Now()
	master, err := p.store.MasterAnswer(ctx, questionID)
	if err != nil {
		logging.Stage(rid, "fetch", "question", questionID, "err", err)
		metrics.Analyses.WithLabelValues(outcome(err)).Inc()
		return types.QuestionReport{}, fmt.Errorf("fetch master answer %s: %w", questionID, err)
	}
	students, err := p.store.StudentAnswers(ctx, questionID, userID)
	if err != nil {
		logging.Stage(rid, "fetch", "question", questionID, "user", userID, "err", err)
		metrics.Analyses.WithLabelValues(outcome(err)).Inc()
		return types.QuestionReport{}, fmt.Errorf("fetch student answers %s/%s: %w", questionID, userID, err)
	}
	observe("fetch", start)
	logging.Stage(rid, "fetch", "question", questionID, "user", userID, "students", len(students))

	return p.AnalyzeAnswers(ctx, questionID, master, students)
}

// AnalyzeAnswers grades the given answers against master. Results follow the
// order of students.
func (p *Pipeline) AnalyzeAnswers(ctx context.Context, questionID, master string, students []types.StudentAnswer) (types.QuestionReport, error) {
	ctx = ensureRequestID(ctx)
	rid := RequestID(ctx)

	if len(students) == 0 {
		metrics.Analyses.WithLabelValues(outcome(types.ErrNoStudentAnswers)).Inc()
		return types.QuestionReport{}, types.ErrNoStudentAnswers
	}

	// All extraction happens up front so that a broken extraction fails the
	// request before any student is graded.
	start := time.Now()
	masterEqs, err := p.extractor.ExtractSide(ctx, "master", master)
	if err != nil {
		return p.fail(rid, "extract", err)
	}
	studentEqs := make([][]types.Equation, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, s := range students {
		g.Go(func() error {
			eqs, err := p.extractor.ExtractSide(gctx, "student", s.Text)
			if err != nil {
				return fmt.Errorf("student %s: %w", s.StudentID, err)
			}
			studentEqs[i] = eqs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.fail(rid, "extract", err)
	}
	observe("extract", start)
	logging.Stage(rid, "extract", "question", questionID, "master_equations", len(masterEqs), "students", len(students))

	normalize.All(masterEqs)
	m := side{text: master, eqs: masterEqs}
	m.rewrite()
	if m.overlap != nil {
		logging.Stage(rid, "rewrite", "side", "master", "err", m.overlap)
	}

	report := types.QuestionReport{QuestionID: questionID, Results: make([]types.AnalysisResult, 0, len(students))}
	for i, s := range students {
		if err := ctx.Err(); err != nil {
			return p.fail(rid, "grade", err)
		}
		report.Results = append(report.Results, p.grade(ctx, rid, m, s, studentEqs[i]))
	}
	metrics.Analyses.WithLabelValues("ok").Inc()
	return report, nil
}

// Compare grades one student text against one master text.
func (p *Pipeline) Compare(ctx context.Context, master, student string) (types.AnalysisResult, error) {
	report, err := p.AnalyzeAnswers(ctx, "", master, []types.StudentAnswer{{StudentID: "student", Text: student}})
	if err != nil {
		return types.AnalysisResult{}, err
	}
	return report.Results[0], nil
}

// side is one answer text with its equations and descriptive rewrite.
type side struct {
	text        string
	eqs         []types.Equation
	descriptive string
	overlap     error
}

// rewrite fills descriptive. Overlapping spans leave the plain text in
// place and are reported in overlap.
func (s *side) rewrite() {
	d, err := rewrite.Rewrite(s.text, s.eqs)
	if err != nil {
		s.descriptive, s.overlap = s.text, err
		return
	}
	s.descriptive = d
}

func (p *Pipeline) grade(ctx context.Context, rid string, master side, sa types.StudentAnswer, eqs []types.Equation) types.AnalysisResult {
	res := types.AnalysisResult{StudentID: sa.StudentID}
	degrade := func(reason, note string) {
		res.Degraded = true
		res.Notes = append(res.Notes, note)
		metrics.Degraded.WithLabelValues(reason).Inc()
	}

	// normalize
	normalize.All(eqs)
	st := side{text: sa.Text, eqs: eqs}

	// score equations
	start := time.Now()
	eq := eqscore.Score(ctx, master.eqs, st.eqs, p.eqEmbed)
	observe("equations", start)

	// rewrite
	st.rewrite()
	if master.overlap != nil {
		degrade("overlap", "master compared on plain text: "+master.overlap.Error())
	}
	if st.overlap != nil {
		degrade("overlap", "student compared on plain text: "+st.overlap.Error())
		logging.Stage(rid, "rewrite", "student", sa.StudentID, "err", st.overlap)
	}

	// semantic
	start = time.Now()
	sbert, err := p.sbert.Similarity(ctx, master.descriptive, st.descriptive)
	if err != nil {
		sbert = 0
		degrade("embedding", err.Error())
	}
	e5, err := p.e5.Similarity(ctx, master.descriptive, st.descriptive)
	if err != nil {
		e5 = 0
		degrade("embedding", err.Error())
	}
	observe("semantic", start)

	// fuse
	res.Scores = types.ScoreBundle{
		EquationScore: eq.Score,
		SBERTScore:    sbert,
		E5Score:       e5,
		FinalScore:    p.weights.Fuse(eq.Score, sbert, e5),
	}
	res.FinalScore = res.Scores.FinalScore
	metrics.FinalScore.Observe(res.FinalScore)

	// feedback
	start = time.Now()
	d := p.feedback.Generate(ctx, feedback.Input{
		Master:  master.descriptive,
		Student: st.descriptive,
		Matrix:  eq.Matrix,
		Scores:  res.Scores,
	})
	observe("feedback", start)
	if d.Fallback {
		metrics.FeedbackFallbacks.Inc()
	}
	res.Details = &d
	res.Feedback = d.Text()

	logging.Stage(rid, "emit", "student", sa.StudentID,
		"equation", res.Scores.EquationScore, "sbert", sbert, "e5", e5,
		"final", res.FinalScore, "degraded", res.Degraded)
	return res
}

func (p *Pipeline) fail(rid, stage string, err error) (types.QuestionReport, error) {
	logging.Stage(rid, stage, "err", err)
	metrics.Analyses.WithLabelValues(outcome(err)).Inc()
	return types.QuestionReport{}, err
}

// Report is the error body returned to the caller.
func Report(err error) types.ErrorReport {
	switch {
	case errors.Is(err, types.ErrMasterNotFound):
		return types.ErrorReport{Error: "Master answer not found."}
	case errors.Is(err, types.ErrNoStudentAnswers):
		return types.ErrorReport{Error: "No student answers found."}
	case errors.Is(err, types.ErrNotFound):
		return types.ErrorReport{Error: "Not found."}
	case err == nil:
		return types.ErrorReport{}
	}
	return types.ErrorReport{Error: err.Error()}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, types.ErrExtraction):
		return "extraction_error"
	}
	return "error"
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

type ridKey struct{}

// WithRequestID tags ctx with the id used in stage log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ridKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ridKey{}).(string)
	return id
}

func ensureRequestID(ctx context.Context) context.Context {
	if RequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, uuid.NewString())
}
