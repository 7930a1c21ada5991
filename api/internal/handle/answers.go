package handle

import (
	"log"
	"net/http"
	"strings"

	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
)

// --- ANSWERS ---------------------------------------------------------------

type submitReq struct {
	QuestionID string `json:"questionId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	AnswerText string `json:"answerText" validate:"required"`
}

// SubmitAnswer stores a student answer.
func (h *Handle) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if h.answers == nil {
		writeError(w, http.StatusServiceUnavailable, "answer store is not configured")
		return
	}
	var req submitReq
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.answers.SaveStudentAnswer(r.Context(), types.Answer{
		QuestionID: strings.TrimSpace(req.QuestionID),
		AuthorID:   strings.TrimSpace(req.UserID),
		Text:       req.AnswerText,
	})
	if err != nil {
		log.Printf("[%s] save answer %s/%s: %v", pipeline.RequestID(r.Context()), req.QuestionID, req.UserID, err)
		writeError(w, http.StatusInternalServerError, "could not store the answer")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         id,
		"questionId": req.QuestionID,
		"userId":     req.UserID,
	})
}

type masterReq struct {
	AnswerText string `json:"answerText" validate:"required"`
}

// PutMaster creates or replaces the master answer of a question.
func (h *Handle) PutMaster(w http.ResponseWriter, r *http.Request) {
	if h.answers == nil {
		writeError(w, http.StatusServiceUnavailable, "answer store is not configured")
		return
	}
	q := strings.TrimSpace(r.PathValue("questionId"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}
	var req masterReq
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.answers.SaveMasterAnswer(r.Context(), q, req.AnswerText); err != nil {
		log.Printf("[%s] save master %s: %v", pipeline.RequestID(r.Context()), q, err)
		writeError(w, http.StatusInternalServerError, "could not store the master answer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"questionId": q, "status": "saved"})
}
