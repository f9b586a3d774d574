package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"skillset/internal/fsutil"
	"skillset/internal/permission"
)

// Writer applies resolved permission sets to one settings file.
type Writer struct {
	Path string
}

func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Result describes one Apply.
type Result struct {
	Path    string `json:"path"`
	Diff    Diff   `json:"diff"`
	Created bool   `json:"created,omitempty"`
	Written bool   `json:"written"`
	DryRun  bool   `json:"dryRun,omitempty"`
}

// Load reads the settings file. A missing file yields an empty document and
// exists=false.
func (w *Writer) Load() (doc *Document, exists bool, err error) {
	blob, err := os.ReadFile(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), false, nil
		}
		return nil, false, err
	}
	doc, err = Parse(blob)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", w.Path, err)
	}
	return doc, true, nil
}

// Apply merges set into the settings file. With dryRun the diff is computed
// and nothing is written. Otherwise the file is created if missing and
// rewritten atomically when the merge changes it; an apply that changes
// nothing leaves the file untouched.
func (w *Writer) Apply(set *permission.Set, dryRun bool) (Result, error) {
	res := Result{Path: w.Path, DryRun: dryRun}
	doc, exists, err := w.Load()
	if err != nil {
		return res, err
	}
	res.Diff = doc.Merge(set)
	if dryRun {
		return res, nil
	}
	if exists && len(res.Diff) == 0 {
		return res, nil
	}
	blob, err := doc.Bytes()
	if err != nil {
		return res, fmt.Errorf("SET_ENCODE: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return res, err
	}
	if err := fsutil.AtomicWrite(w.Path, blob, 0o644); err != nil {
		return res, fmt.Errorf("SET_WRITE: %w", err)
	}
	res.Created = !exists
	res.Written = true
	return res, nil
}
