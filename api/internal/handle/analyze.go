package handle

import (
	"context"
	"log"
	"net/http"
	"strings"

	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
)

// --- ANALYZE ---------------------------------------------------------------

// AnalyzeStored grades the stored answers of a user to a question against
// the stored master answer.
func (h *Handle) AnalyzeStored(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.PathValue("questionId"))
	u := strings.TrimSpace(r.PathValue("userId"))
	if q == "" || u == "" {
		writeError(w, http.StatusBadRequest, "questionId and userId are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	report, err := h.grader.Analyze(ctx, q, u)
	if err != nil {
		log.Printf("[%s] analyze %s/%s: %v", pipeline.RequestID(ctx), q, u, err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyzeReq is an upload of a master answer with the answers to grade.
type analyzeReq struct {
	QuestionID     string                `json:"questionId" validate:"required"`
	MasterAnswer   string                `json:"master_answer" validate:"required"`
	StudentAnswers []types.StudentAnswer `json:"student_answers" validate:"required,min=1,dive"`
}

// AnalyzeUpload grades the answers in the request body; nothing is read
// from or written to the store.
func (h *Handle) AnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	var req analyzeReq
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	report, err := h.grader.AnalyzeAnswers(ctx, req.QuestionID, req.MasterAnswer, req.StudentAnswers)
	if err != nil {
		log.Printf("[%s] analyze upload %s: %v", pipeline.RequestID(ctx), req.QuestionID, err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
