package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
)

// Grader runs the grading pipeline.
type Grader interface {
	Analyze(ctx context.Context, questionID, userID string) (types.QuestionReport, error)
	AnalyzeAnswers(ctx context.Context, questionID, master string, students []types.StudentAnswer) (types.QuestionReport, error)
}

// AnswerWriter stores submitted answers.
type AnswerWriter interface {
	SaveStudentAnswer(ctx context.Context, a types.Answer) (int64, error)
	SaveMasterAnswer(ctx context.Context, questionID, text string) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handle struct {
	grader   Grader
	answers  AnswerWriter
	db       Pinger
	validate *validator.Validate
	timeout  time.Duration
}

// New builds the handlers. answers and db may be nil when the service runs
// without a database; the endpoints that need them answer 503.
func New(g Grader, answers AnswerWriter, db Pinger, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Handle{
		grader:   g,
		answers:  answers,
		db:       db,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  timeout,
	}
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /analyze/{questionId}/{userId}", h.withRequestID(h.AnalyzeStored))
	mux.HandleFunc("POST /analyze", h.withRequestID(h.AnalyzeUpload))
	mux.HandleFunc("POST /api/answers", h.withRequestID(h.SubmitAnswer))
	mux.HandleFunc("PUT /api/master/{questionId}", h.withRequestID(h.PutMaster))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorReport{Error: msg})
}

// writeFailure maps a pipeline error onto a status code and the error body.
func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), pipeline.Report(err))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrExtraction):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// deadline reads X-Request-Timeout or ?timeoutSec=, in seconds, falling back
// to the configured timeout.
func (h *Handle) deadline(r *http.Request) time.Duration {
	d := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	}
	return d
}

func (h *Handle) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next(w, r.WithContext(pipeline.WithRequestID(r.Context(), rid)))
	}
}

// decode reads a JSON body into v and validates it.
func (h *Handle) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Namespace()+" is required")
		case "min":
			msgs = append(msgs, fe.Namespace()+" needs at least "+fe.Param()+" item(s)")
		default:
			msgs = append(msgs, fe.Namespace()+" is invalid ("+fe.Tag()+")")
		}
	}
	return strings.Join(msgs, "; ")
}
