// Package logging sets up the standard logger and formats pipeline lines.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init sends log output to stdout and, when path is set, appends it to that
// file as well.
func Init(path string) error { return InitWith(os.Stdout, path) }

// InitWith is Init with console output going to w.
func InitWith(w io.Writer, path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	writers := []io.Writer{w}
	if path != "" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = f
		writers = append(writers, f)
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func Event(format string, args ...any) {
	log.Println(fmt.Sprintf(format, args...))
}

// Stage logs one pipeline step as
//
//	[req] stage=<stage> k1=v1 k2=v2
//
// kv is read in pairs; a trailing odd key is logged with an empty value.
func Stage(requestID, stage string, kv ...any) {
	log.Println(stageLine(requestID, stage, kv...))
}

func stageLine(requestID, stage string, kv ...any) string {
	rid := strings.TrimSpace(requestID)
	if rid == "" {
		rid = "-"
	}
	parts := []string{"[" + rid + "]", "stage=" + stage}
	for i := 0; i < len(kv); i += 2 {
		var v any = ""
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		parts = append(parts, fmt.Sprintf("%v=%s", kv[i], formatValue(v)))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		if x == "" || strings.ContainsAny(x, " \t\n\"=") {
			return fmt.Sprintf("%q", x)
		}
		return x
	case float64:
		return fmt.Sprintf("%.4f", x)
	case error:
		return fmt.Sprintf("%q", x.Error())
	case fmt.Stringer:
		return formatValue(x.String())
	default:
		return fmt.Sprintf("%v", x)
	}
}
