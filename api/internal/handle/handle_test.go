package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
)

type fakeGrader struct {
	err      error
	deadline time.Duration
	rid      string
	students []types.StudentAnswer
}

func (g *fakeGrader) note(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		g.deadline = time.Until(dl)
	}
	g.rid = pipeline.RequestID(ctx)
}

func (g *fakeGrader) Analyze(ctx context.Context, q, u string) (types.QuestionReport, error) {
	g.note(ctx)
	if g.err != nil {
		return types.QuestionReport{}, g.err
	}
	return types.QuestionReport{QuestionID: q, Results: []types.AnalysisResult{{StudentID: u, FinalScore: 0.75}}}, nil
}

func (g *fakeGrader) AnalyzeAnswers(ctx context.Context, q, master string, students []types.StudentAnswer) (types.QuestionReport, error) {
	g.note(ctx)
	g.students = students
	if g.err != nil {
		return types.QuestionReport{}, g.err
	}
	rep := types.QuestionReport{QuestionID: q}
	for _, s := range students {
		rep.Results = append(rep.Results, types.AnalysisResult{StudentID: s.StudentID, FinalScore: 1})
	}
	return rep, nil
}

type fakeAnswers struct {
	saved  []types.Answer
	master map[string]string
	err    error
}

func (a *fakeAnswers) SaveStudentAnswer(ctx context.Context, ans types.Answer) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.saved = append(a.saved, ans)
	return int64(len(a.saved)), nil
}

func (a *fakeAnswers) SaveMasterAnswer(ctx context.Context, q, text string) error {
	if a.err != nil {
		return a.err
	}
	if a.master == nil {
		a.master = map[string]string{}
	}
	a.master[q] = text
	return nil
}

type fakeDB struct{ err error }

func (d fakeDB) PingContext(context.Context) error { return d.err }

func newServer(g Grader, a AnswerWriter, db Pinger) *httptest.Server {
	mux := http.NewServeMux()
	New(g, a, db, time.Minute).Routes(mux)
	return httptest.NewServer(mux)
}

func do(t *testing.T, method, url, body string, hdr map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAnalyzeStored(t *testing.T) {
	g := &fakeGrader{}
	srv := newServer(g, nil, nil)
	defer srv.Close()

	resp, out := do(t, http.MethodGet, srv.URL+"/analyze/q1/u1", "", map[string]string{"X-Request-ID": "req-7"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["questionId"] != "q1" {
		t.Fatalf("body = %v", out)
	}
	if g.rid != "req-7" || resp.Header.Get("X-Request-ID") != "req-7" {
		t.Fatalf("request id not propagated: %q", g.rid)
	}
	if g.deadline <= 0 || g.deadline > time.Minute {
		t.Fatalf("deadline = %v", g.deadline)
	}
}

func TestAnalyzeDeadlineOverride(t *testing.T) {
	g := &fakeGrader{}
	srv := newServer(g, nil, nil)
	defer srv.Close()

	do(t, http.MethodGet, srv.URL+"/analyze/q1/u1?timeoutSec=5", "", nil)
	if g.deadline > 5*time.Second {
		t.Fatalf("query deadline ignored: %v", g.deadline)
	}
	do(t, http.MethodGet, srv.URL+"/analyze/q1/u1?timeoutSec=5", "", map[string]string{"X-Request-Timeout": "2"})
	if g.deadline > 2*time.Second {
		t.Fatalf("header must win over query: %v", g.deadline)
	}
	if g.rid == "" {
		t.Fatalf("a request id must be generated")
	}
}

func TestAnalyzeErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{types.ErrMasterNotFound, http.StatusNotFound, "Master answer not found."},
		{fmt.Errorf("fetch: %w", types.ErrNoStudentAnswers), http.StatusNotFound, "No student answers found."},
		{&types.ExtractionError{Side: "student s1", Err: errors.New("boom")}, http.StatusBadGateway, ""},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{&types.ExtractionError{Side: "student s1", Err: fmt.Errorf("%w: %w", types.ErrGeneration, context.DeadlineExceeded)}, http.StatusGatewayTimeout, ""},
		{errors.New("db down"), http.StatusInternalServerError, "db down"},
	}
	for _, c := range cases {
		srv := newServer(&fakeGrader{err: c.err}, nil, nil)
		resp, out := do(t, http.MethodGet, srv.URL+"/analyze/q/u", "", nil)
		srv.Close()
		if resp.StatusCode != c.code {
			t.Errorf("%v: status = %d, want %d", c.err, resp.StatusCode, c.code)
		}
		if c.msg != "" && out["error"] != c.msg {
			t.Errorf("%v: error = %v, want %q", c.err, out["error"], c.msg)
		}
	}
}

func TestAnalyzeUpload(t *testing.T) {
	g := &fakeGrader{}
	srv := newServer(g, nil, nil)
	defer srv.Close()

	body := `{"questionId":"q9","master_answer":"F = ma","student_answers":[{"student_id":"a","answer_text":"F=ma"},{"student_id":"b","answer_text":""}]}`
	resp, out := do(t, http.MethodPost, srv.URL+"/analyze", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, out)
	}
	if len(g.students) != 2 || g.students[0].StudentID != "a" || g.students[1].StudentID != "b" {
		t.Fatalf("students = %+v", g.students)
	}
}

func TestAnalyzeUploadValidation(t *testing.T) {
	srv := newServer(&fakeGrader{}, nil, nil)
	defer srv.Close()

	cases := map[string]string{
		"bad json":       `{`,
		"no master":      `{"questionId":"q","student_answers":[{"student_id":"a","answer_text":"x"}]}`,
		"no students":    `{"questionId":"q","master_answer":"m","student_answers":[]}`,
		"no student id":  `{"questionId":"q","master_answer":"m","student_answers":[{"answer_text":"x"}]}`,
		"no question id": `{"master_answer":"m","student_answers":[{"student_id":"a","answer_text":"x"}]}`,
	}
	for name, body := range cases {
		resp, out := do(t, http.MethodPost, srv.URL+"/analyze", body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, resp.StatusCode)
		}
		if s, _ := out["error"].(string); s == "" {
			t.Errorf("%s: no error message", name)
		}
	}
}

func TestSubmitAnswer(t *testing.T) {
	a := &fakeAnswers{}
	srv := newServer(&fakeGrader{}, a, nil)
	defer srv.Close()

	resp, out := do(t, http.MethodPost, srv.URL+"/api/answers", `{"questionId":"q1","userId":"u1","answerText":"E = mc^2"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["id"] != float64(1) || len(a.saved) != 1 || a.saved[0].AuthorID != "u1" {
		t.Fatalf("out = %v saved = %+v", out, a.saved)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/answers", `{"questionId":"q1"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields: status = %d", resp.StatusCode)
	}

	a.err = errors.New("insert failed")
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/answers", `{"questionId":"q1","userId":"u1","answerText":"x"}`, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("store failure: status = %d", resp.StatusCode)
	}
}

func TestPutMaster(t *testing.T) {
	a := &fakeAnswers{}
	srv := newServer(&fakeGrader{}, a, nil)
	defer srv.Close()

	resp, _ := do(t, http.MethodPut, srv.URL+"/api/master/q5", `{"answerText":"v = d / t"}`, nil)
	if resp.StatusCode != http.StatusOK || a.master["q5"] != "v = d / t" {
		t.Fatalf("status = %d master = %v", resp.StatusCode, a.master)
	}
}

func TestNoStore(t *testing.T) {
	srv := newServer(&fakeGrader{}, nil, nil)
	defer srv.Close()

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/answers", `{"questionId":"q","userId":"u","answerText":"x"}`, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoints(t *testing.T) {
	srv := newServer(&fakeGrader{}, nil, fakeDB{})
	defer srv.Close()

	resp, out := do(t, http.MethodGet, srv.URL+"/", "", nil)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("root: %d %v", resp.StatusCode, out)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}

	down := newServer(&fakeGrader{}, nil, fakeDB{err: errors.New("refused")})
	defer down.Close()
	resp, _ = do(t, http.MethodGet, down.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz with db down: %d", resp.StatusCode)
	}
}
