package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"echo-grade/api/internal/grade/types"
)

var ErrNotFound = sql.ErrNoRows

type AnswerRepo struct{ DB *sql.DB }

func NewAnswerRepo(db *sql.DB) *AnswerRepo { return &AnswerRepo{DB: db} }

// MasterAnswer returns the reference answer of a question.
// A missing or blank answer is types.ErrMasterNotFound.
func (r *AnswerRepo) MasterAnswer(ctx context.Context, questionID string) (string, error) {
	const q = `select answer_text from master_answers where question_id = $1`
	var text string
	if err := r.DB.QueryRowContext(ctx, q, questionID).Scan(&text); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", types.ErrMasterNotFound
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", types.ErrMasterNotFound
	}
	return text, nil
}

// StudentAnswers returns the answers of userID to the question, oldest
// first. An empty userID returns the answers of every user.
func (r *AnswerRepo) StudentAnswers(ctx context.Context, questionID, userID string) ([]types.StudentAnswer, error) {
	const q = `
select user_id, answer_text
from student_answers
where question_id = $1 and ($2 = '' or user_id = $2)
order by created_at, id`
	rows, err := r.DB.QueryContext(ctx, q, questionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.StudentAnswer
	for rows.Next() {
		var a types.StudentAnswer
		if err := rows.Scan(&a.StudentID, &a.Text); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, types.ErrNoStudentAnswers
	}
	return out, nil
}

// SaveStudentAnswer stores one submitted answer and returns its id.
func (r *AnswerRepo) SaveStudentAnswer(ctx context.Context, a types.Answer) (int64, error) {
	const q = `
insert into student_answers (question_id, user_id, answer_text)
values ($1, $2, $3)
returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q, a.QuestionID, a.AuthorID, a.Text).Scan(&id)
	return id, err
}

// SaveMasterAnswer creates or replaces the reference answer of a question.
func (r *AnswerRepo) SaveMasterAnswer(ctx context.Context, questionID, text string) error {
	const q = `
insert into master_answers (question_id, answer_text)
values ($1, $2)
on conflict (question_id) do update
set answer_text = excluded.answer_text,
    updated_at = now()`
	_, err := r.DB.ExecContext(ctx, q, questionID, text)
	return err
}

// DeleteStudentAnswers removes the answers of userID to the question and
// returns how many rows went away.
func (r *AnswerRepo) DeleteStudentAnswers(ctx context.Context, questionID, userID string) (int64, error) {
	const q = `delete from student_answers where question_id = $1 and user_id = $2`
	res, err := r.DB.ExecContext(ctx, q, questionID, userID)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
