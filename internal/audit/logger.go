package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger appends one JSON object per line to an audit file. A nil Logger or
// one with an empty path discards events.
type Logger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type Event struct {
	Timestamp string            `json:"timestamp"`
	Operation string            `json:"operation"`
	Phase     string            `json:"phase"`
	Status    string            `json:"status"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func New(path string) *Logger {
	return &Logger{path: path, now: time.Now}
}

func (l *Logger) Log(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	ev.Timestamp = now().UTC().Format(time.RFC3339Nano)
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(blob, '\n')); err != nil {
		return err
	}
	return nil
}

// Result logs the commit phase of operation. A non-nil err is recorded as a
// failure with its code prefix ("LNK_ALREADY_LINKED: ...") split out.
func (l *Logger) Result(operation string, err error, fields map[string]string) error {
	ev := Event{Operation: operation, Phase: "commit", Status: "ok", Fields: fields}
	if err != nil {
		ev.Status = "error"
		ev.Code = Code(err)
		ev.Message = err.Error()
	}
	return l.Log(ev)
}

// Code extracts the leading upper-case code of a coded error, walking the
// wrap chain to the innermost coded error.
func Code(err error) string {
	code := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		if c := leadingCode(e.Error()); c != "" {
			code = c
		}
	}
	return code
}

func leadingCode(msg string) string {
	idx := strings.Index(msg, ":")
	if idx <= 0 {
		return ""
	}
	head := msg[:idx]
	for _, r := range head {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return ""
		}
	}
	return head
}
