package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Finished analyses by outcome: ok | not_found | timeout | extraction_error | error
	Analyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grader_analyses_total",
		Help: "Analysis requests by outcome",
	}, []string{"outcome"})

	FinalScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grader_final_score",
		Help:    "Final score of every graded student answer",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grader_stage_duration_seconds",
		Help:    "Latency of the pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// Students graded on plain text or with a zeroed score
	Degraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grader_degraded_total",
		Help: "Degraded student results by reason",
	}, []string{"reason"})

	FeedbackFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grader_feedback_fallbacks_total",
		Help: "Explanations built from the template instead of the model",
	})
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Analyses, FinalScore, StageDuration, Degraded, FeedbackFallbacks)
	})
}
