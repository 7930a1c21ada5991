package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"echo-grade/api/internal/grade/types"
)

type fakeComparer struct {
	master, student string
	err             error
}

func (f *fakeComparer) Compare(ctx context.Context, master, student string) (types.AnalysisResult, error) {
	f.master, f.student = master, student
	if f.err != nil {
		return types.AnalysisResult{}, f.err
	}
	return types.AnalysisResult{StudentID: "student", FinalScore: 0.8}, nil
}

func TestRunCompare(t *testing.T) {
	var out bytes.Buffer
	c := &fakeComparer{}
	if err := runCompare(context.Background(), c, "F = m a", "F = ma", &out, true); err != nil {
		t.Fatalf("runCompare: %v", err)
	}
	var res types.AnalysisResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if res.FinalScore != 0.8 || c.master != "F = m a" || c.student != "F = ma" {
		t.Fatalf("res = %+v comparer = %+v", res, c)
	}
	if !strings.Contains(out.String(), "\n  \"") {
		t.Fatalf("pretty output expected:\n%s", out.String())
	}

	c.err = errors.New("model down")
	if err := runCompare(context.Background(), c, "a", "b", &out, false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.txt")
	if err := os.WriteFile(path, []byte("v = d / t"), 0o644); err != nil {
		t.Fatal(err)
	}
	if s, err := readInput(path, nil); err != nil || s != "v = d / t" {
		t.Fatalf("file: %q %v", s, err)
	}
	if s, err := readInput("-", strings.NewReader("from stdin")); err != nil || s != "from stdin" {
		t.Fatalf("stdin: %q %v", s, err)
	}
	if _, err := readInput(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatalf("missing file must fail")
	}
}

func TestCompareRequiresFlags(t *testing.T) {
	rootCmd.SetArgs([]string{"compare", "--master", "m.txt"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "student") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompareRejectsDoubleStdin(t *testing.T) {
	rootCmd.SetArgs([]string{"compare", "--master", "-", "--student", "-"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "stdin") {
		t.Fatalf("err = %v", err)
	}
}
