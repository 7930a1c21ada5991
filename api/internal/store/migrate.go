package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`create table if not exists master_answers (
  question_id text primary key,
  answer_text text not null,
  created_at  timestamptz not null default now(),
  updated_at  timestamptz not null default now()
)`,
	`create table if not exists student_answers (
  id          bigserial primary key,
  question_id text not null,
  user_id     text not null,
  answer_text text not null,
  created_at  timestamptz not null default now()
)`,
	`create index if not exists student_answers_question_user_idx
  on student_answers (question_id, user_id)`,
}

// Migrate creates the answer tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
