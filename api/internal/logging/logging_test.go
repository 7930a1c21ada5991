package logging

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "grader.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	Event("hello %s", "world")
	Stage("req-1", "fuse", "student", "s1", "final", 0.5)
	_ = Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"hello world", "[req-1] stage=fuse student=s1 final=0.5000"} {
		if !strings.Contains(content, want) {
			t.Fatalf("log misses %q:\n%s", want, content)
		}
	}
}

func TestStageLine(t *testing.T) {
	cases := []struct {
		rid, stage string
		kv         []any
		want       string
	}{
		{"", "fetch", nil, "[-] stage=fetch"},
		{"r", "extract", []any{"side", "master", "n", 3}, "[r] stage=extract side=master n=3"},
		{"r", "rewrite", []any{"err", errors.New("bad span")}, `[r] stage=rewrite err="bad span"`},
		{"r", "emit", []any{"text", "two words", "odd"}, `[r] stage=emit text="two words" odd=""`},
		{"r", "emit", []any{"took", 1500 * time.Millisecond}, "[r] stage=emit took=1.5s"},
	}
	for _, c := range cases {
		if got := stageLine(c.rid, c.stage, c.kv...); got != c.want {
			t.Errorf("stageLine = %q, want %q", got, c.want)
		}
	}
}

func TestCloseWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestInitWithConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, ""); err != nil {
		t.Fatalf("InitWith: %v", err)
	}
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	Event("to the console")
	if !strings.Contains(buf.String(), "to the console") {
		t.Fatalf("console got %q", buf.String())
	}
}
