// Package gradetest holds in-memory capabilities and stores for tests.
package gradetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	"echo-grade/api/internal/grade/types"
)

// Generator answers prompts with Reply. Calls are counted.
type Generator struct {
	Reply func(prompt string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	g.mu.Unlock()
	if g.Reply == nil {
		return "", errors.New("no reply configured")
	}
	return g.Reply(prompt)
}

func (g *Generator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Embedder gives every distinct lower-cased word its own dimension, so equal
// texts get equal vectors and texts with no shared word are orthogonal.
// Texts listed in Fail return an error.
type Embedder struct {
	Fail map[string]bool

	mu    sync.Mutex
	vocab map[string]int
}

const embedderDim = 4096

func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if e.Fail[text] {
		return nil, errors.New("embedding backend unavailable")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vocab == nil {
		e.vocab = map[string]int{}
	}
	v := make([]float64, embedderDim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,;:!?\"'", r)
	}) {
		i, ok := e.vocab[w]
		if !ok {
			i = len(e.vocab) % embedderDim
			e.vocab[w] = i
		}
		v[i]++
	}
	return v, nil
}

// Vectors returns fixed vectors per text; unknown texts fail.
type Vectors map[string][]float64

func (m Vectors) Embed(_ context.Context, text string) ([]float64, error) {
	v, ok := m[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

// Store is an in-memory answer store.
type Store struct {
	Masters  map[string]string
	Students map[string][]types.StudentAnswer // key: questionID + "/" + userID

	mu    sync.Mutex
	calls int
}

func Key(questionID, userID string) string { return questionID + "/" + userID }

func (s *Store) MasterAnswer(_ context.Context, questionID string) (string, error) {
	s.count()
	m, ok := s.Masters[questionID]
	if !ok || strings.TrimSpace(m) == "" {
		return "", types.ErrMasterNotFound
	}
	return m, nil
}

func (s *Store) StudentAnswers(_ context.Context, questionID, userID string) ([]types.StudentAnswer, error) {
	s.count()
	rows := s.Students[Key(questionID, userID)]
	if len(rows) == 0 {
		return nil, types.ErrNoStudentAnswers
	}
	return rows, nil
}

func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}
