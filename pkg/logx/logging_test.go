package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "sweep"))

	log.Debug("hidden")
	log.Info("pass completed", Int("scheduled", 3), Strings("ids", []string{"a", "b"}), Err(errors.New("boom")), Err(nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["message"] != "pass completed" || rec["comp"] != "sweep" || rec["scheduled"] != float64(3) {
		t.Fatalf("record = %v", rec)
	}
	if rec["error"] != "boom" && rec["err"] != "boom" {
		t.Fatalf("error field missing: %v", rec)
	}
	if c, _ := rec["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	zero.Info("ignored")
	if Nop().IsZero() {
		t.Fatalf("Nop should not be zero")
	}
	if Nop().Enabled(LevelError) {
		t.Fatalf("Nop should be disabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"trace":   LevelTrace,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			if got := parseLevel(in, LevelInfo); got != want {
				t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
			}
		})
	}
}

func TestServiceFileSinkAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novacal.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	child := log.With(String("comp", "http"))
	child.Debug("before apply")
	child.Info("listening")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if !child.Enabled(LevelDebug) {
		t.Fatalf("derived logger should follow Apply")
	}
	child.Debug("after apply")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "before apply") {
		t.Fatalf("debug line written at info level:\n%s", out)
	}
	for _, want := range []string{"listening", "after apply", `"comp":"http"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log file missing %q:\n%s", want, out)
		}
	}
}
