package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogNoopForNilLoggerAndEmptyPath(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log(Event{Operation: "op"}); err != nil {
		t.Fatalf("nil logger should be noop: %v", err)
	}
	if err := New("").Log(Event{Operation: "op"}); err != nil {
		t.Fatalf("empty-path logger should be noop: %v", err)
	}
}

func TestLogWritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit", "events.log")
	logger := New(logPath)

	first := Event{
		Operation: "apply",
		Phase:     "resolve",
		Status:    "ok",
		Code:      "DOC_OK",
		Message:   "resolved",
		Fields: map[string]string{
			"preset": "git",
		},
	}
	second := Event{
		Operation: "apply",
		Phase:     "commit",
		Status:    "ok",
	}

	if err := logger.Log(first); err != nil {
		t.Fatalf("log first event: %v", err)
	}
	if err := logger.Log(second); err != nil {
		t.Fatalf("log second event: %v", err)
	}

	blob, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var gotFirst Event
	if err := json.Unmarshal([]byte(lines[0]), &gotFirst); err != nil {
		t.Fatalf("unmarshal first event: %v", err)
	}
	if gotFirst.Timestamp == "" {
		t.Fatalf("expected timestamp to be set")
	}
	if _, err := time.Parse(time.RFC3339Nano, gotFirst.Timestamp); err != nil {
		t.Fatalf("timestamp should be RFC3339Nano: %v", err)
	}
	if gotFirst.Operation != first.Operation || gotFirst.Phase != first.Phase || gotFirst.Status != first.Status {
		t.Fatalf("unexpected first event body: %+v", gotFirst)
	}
	if gotFirst.Code != first.Code || gotFirst.Message != first.Message {
		t.Fatalf("unexpected first event metadata: %+v", gotFirst)
	}
	if gotFirst.Fields["preset"] != "git" {
		t.Fatalf("unexpected first event fields: %+v", gotFirst.Fields)
	}

	var gotSecond Event
	if err := json.Unmarshal([]byte(lines[1]), &gotSecond); err != nil {
		t.Fatalf("unmarshal second event: %v", err)
	}
	if gotSecond.Operation != second.Operation || gotSecond.Phase != second.Phase || gotSecond.Status != second.Status {
		t.Fatalf("unexpected second event body: %+v", gotSecond)
	}
}

func TestLogMkdirAllFailure(t *testing.T) {
	tmp := t.TempDir()
	blockedPath := filepath.Join(tmp, "blocked")
	if err := os.WriteFile(blockedPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("create blocking file: %v", err)
	}

	logger := New(filepath.Join(blockedPath, "events.log"))
	if err := logger.Log(Event{Operation: "add"}); err == nil {
		t.Fatalf("expected mkdir failure")
	}
}

func TestLogOpenFileFailure(t *testing.T) {
	tmp := t.TempDir()
	dirPath := filepath.Join(tmp, "log-dir")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		t.Fatalf("create directory path: %v", err)
	}

	logger := New(dirPath)
	if err := logger.Log(Event{Operation: "add"}); err == nil {
		t.Fatalf("expected open file failure")
	}
}

func TestResultRecordsErrorCode(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger := New(logPath)
	logger.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	base := errors.New("SKL_ALREADY_LINKED: skill already linked to a different target")
	err := fmt.Errorf("link demo: %w", fmt.Errorf("%w: /tmp/x", base))
	if err := logger.Result("add", err, map[string]string{"repo": "acme/skills"}); err != nil {
		t.Fatalf("result: %v", err)
	}
	if err := logger.Result("add", nil, nil); err != nil {
		t.Fatalf("result ok: %v", err)
	}

	blob, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	var failed, ok Event
	if err := json.Unmarshal([]byte(lines[0]), &failed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if failed.Status != "error" || failed.Code != "SKL_ALREADY_LINKED" || failed.Fields["repo"] != "acme/skills" {
		t.Fatalf("unexpected failure event %+v", failed)
	}
	if failed.Timestamp != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected timestamp %q", failed.Timestamp)
	}
	if err := json.Unmarshal([]byte(lines[1]), &ok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ok.Status != "ok" || ok.Code != "" || ok.Phase != "commit" {
		t.Fatalf("unexpected ok event %+v", ok)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain failure"), ""},
		{errors.New("PRS_UNKNOWN: unknown preset"), "PRS_UNKNOWN"},
		{fmt.Errorf("apply: %w", errors.New("SET_MALFORMED: bad json")), "SET_MALFORMED"},
		{errors.New("Mixed_Case: nope"), ""},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
