package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skillset/internal/app"
	"skillset/internal/repocache"
	"skillset/internal/settings"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

// runCLI executes the root command against an isolated home and project.
func runCLI(t *testing.T, home, project string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(home, "config.toml"),
		"--project", project,
		"--log-level", "error",
	}, args...))
	var err error
	out := captureStdout(t, func() { err = cmd.Execute() })
	return out, err
}

func TestNewRootCmdIncludesCoreCommands(t *testing.T) {
	cmd := newRootCmd()
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, want := range []string{"apply", "save", "add", "update", "remove", "list", "doctor", "version"} {
		if !got[want] {
			t.Fatalf("expected command %q", want)
		}
	}
}

func TestApplyDryRunJSON(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	out, err := runCLI(t, home, project, "--json", "apply", "--dry-run", "git")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var res app.ApplyResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !res.DryRun || res.Written || len(res.Diff) == 0 {
		t.Fatalf("unexpected dry-run result %+v", res)
	}
	if _, err := os.Stat(filepath.Join(project, ".claude", "settings.local.json")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote settings")
	}
}

func TestApplyThenSaveText(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	out, err := runCLI(t, home, project, "apply", "node")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out, "Applying: node") || !strings.Contains(out, "Bash(npm *)") || !strings.Contains(out, "Updated ") {
		t.Fatalf("unexpected apply output:\n%s", out)
	}

	out, err = runCLI(t, home, project, "apply", "node")
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !strings.Contains(out, "No changes to") {
		t.Fatalf("expected no-op output, got:\n%s", out)
	}

	out, err = runCLI(t, home, project, "save", "frontend")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(out, "Saved preset 'frontend'") {
		t.Fatalf("unexpected save output %q", out)
	}

	out, err = runCLI(t, home, project, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "frontend [user]") {
		t.Fatalf("expected saved preset in list, got:\n%s", out)
	}
}

func TestApplyReportsMalformedSettings(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	path := filepath.Join(project, ".claude", "settings.local.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := runCLI(t, home, project, "apply", "git")
	if !errors.Is(err, settings.ErrMalformedSettings) {
		t.Fatalf("expected malformed settings, got %v", err)
	}
}

func TestSaveRejectsBadNameBeforeService(t *testing.T) {
	called := false
	cmd := newSaveCmd(func() (*app.Service, error) {
		called = true
		return nil, errors.New("should not be called")
	}, boolPtr(false))
	cmd.SetArgs([]string{"../escape"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "PRS_INVALID_NAME") {
		t.Fatalf("expected invalid name error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called for an invalid name")
	}
}

func TestUpdateUncachedRepoFails(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	_, err := runCLI(t, home, project, "update", "acme/skills")
	if !errors.Is(err, repocache.ErrRepoNotCached) {
		t.Fatalf("expected repo not cached, got %v", err)
	}

	out, err := runCLI(t, home, project, "update")
	if err != nil {
		t.Fatalf("update all with empty cache: %v", err)
	}
	if !strings.Contains(out, "No cached repositories") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRemoveRefusesRealDirectory(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	if err := os.MkdirAll(filepath.Join(project, ".claude", "skills", "mine"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err := runCLI(t, home, project, "remove", "mine")
	if err == nil || !strings.Contains(err.Error(), "LNK_NOT_A_LINK") {
		t.Fatalf("expected not-a-link error, got %v", err)
	}
}

func TestDoctorJSON(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	out, err := runCLI(t, home, project, "--json", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	var report struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !report.Healthy {
		t.Fatalf("expected healthy report: %s", out)
	}
}

func TestVersionJSON(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--json", "version"})
	var err error
	out := captureStdout(t, func() { err = cmd.Execute() })
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info["version"] == "" {
		t.Fatalf("missing version in %v", info)
	}
}

// flakyFetcher clones every repo with one skill and fails to pull the
// repos named in failPull.
type flakyFetcher struct {
	failPull map[string]bool
}

func (f *flakyFetcher) Clone(_ context.Context, id repocache.ID, dest string) error {
	dir := filepath.Join(dest, id.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("# "+id.Name), 0o644)
}

func (f *flakyFetcher) Pull(_ context.Context, dir string) error {
	if f.failPull[filepath.Base(dir)] {
		return errors.New("remote unreachable")
	}
	return nil
}

func (f *flakyFetcher) Revision(context.Context, string) (string, error) {
	return "abc1234", nil
}

func TestUpdateWithFailingRepoExitsOne(t *testing.T) {
	home, project := t.TempDir(), t.TempDir()
	newSvc := func() (*app.Service, error) {
		return app.New(app.Options{
			Home:       home,
			ProjectDir: project,
			LogLevel:   "error",
			LogOutput:  io.Discard,
			Fetcher:    &flakyFetcher{failPull: map[string]bool{"broken": true}},
		})
	}
	svc, err := newSvc()
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	for _, id := range []string{"acme/good", "acme/broken"} {
		if _, err := svc.Cache.Ensure(context.Background(), id); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	cmd := newUpdateCmd(newSvc, boolPtr(false))
	cmd.SetArgs(nil)
	var runErr error
	out := captureStdout(t, func() { runErr = cmd.Execute() })
	if got := exitCode(runErr); got != 1 {
		t.Fatalf("exit code = %d, want 1 (err %v)", got, runErr)
	}
	if !strings.Contains(runErr.Error(), "REPO_UPDATE: 1 of 2") {
		t.Fatalf("unexpected error %v", runErr)
	}
	if !strings.Contains(out, "acme/good") || !strings.Contains(out, "acme/broken") {
		t.Fatalf("expected both outcomes in output, got:\n%s", out)
	}
	if exitCode(nil) != 0 || exitCode(errors.New("plain")) != 1 {
		t.Fatalf("unexpected exit codes for nil and plain errors")
	}
}

func boolPtr(v bool) *bool { return &v }
