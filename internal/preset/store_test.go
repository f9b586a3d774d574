package preset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSaveLoadRoundTripPreservesOrder(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "presets"))
	rules := []Rule{{Pattern: "b", Effect: Deny}, {Pattern: "a", Effect: Allow}, {Pattern: "c", Effect: Ask}}

	path, err := store.Save("mine", rules)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Base(path) != "mine.toml" {
		t.Fatalf("unexpected preset path %q", path)
	}

	got, err := store.Load("mine", ScopeUser)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Scope != ScopeUser || got.Name != "mine" {
		t.Fatalf("unexpected preset identity %+v", got)
	}
	if !reflect.DeepEqual(got.Rules, rules) {
		t.Fatalf("rules = %#v, want %#v", got.Rules, rules)
	}
}

func TestSaveOverwritesExistingPreset(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Save("p", []Rule{{Pattern: "a", Effect: Allow}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := store.Save("p", []Rule{{Pattern: "b", Effect: Deny}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.Load("p", ScopeUser)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Rules) != 1 || got.Rules[0].Pattern != "b" {
		t.Fatalf("expected overwritten rules, got %#v", got.Rules)
	}
}

func TestSaveCreatesDirectoryIdempotently(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "presets")
	store := New(dir)
	for i := 0; i < 2; i++ {
		if _, err := store.Save("p", nil); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected presets dir to exist: %v", err)
	}
}

func TestSaveIdenticalRulesKeepsFile(t *testing.T) {
	store := New(t.TempDir())
	rules := []Rule{{Pattern: "Read", Effect: Allow}}
	path, err := store.Save("p", rules)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	before, _ := os.Stat(path)
	if _, err := store.Save("p", rules); err != nil {
		t.Fatalf("second save: %v", err)
	}
	after, _ := os.Stat(path)
	if !os.SameFile(before, after) {
		t.Fatalf("expected identical save to leave the file in place")
	}
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	store := New(t.TempDir())
	for _, name := range []string{"", "a/b", `a\b`, ".hidden"} {
		if _, err := store.Save(name, nil); !errors.Is(err, ErrInvalidPresetName) {
			t.Fatalf("expected invalid name error for %q, got %v", name, err)
		}
	}
	if _, err := store.Save("p", []Rule{{Pattern: "a", Effect: "maybe"}}); !errors.Is(err, ErrInvalidEffect) {
		t.Fatalf("expected invalid effect error, got %v", err)
	}
	if _, err := store.Save("p", []Rule{{Pattern: " ", Effect: Allow}}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected invalid rule error, got %v", err)
	}
}

func TestLoadNotFound(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Load("nope", ScopeUser); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected not found for user scope, got %v", err)
	}
	if _, err := store.Load("nope", ScopeBuiltin); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected not found for builtin scope, got %v", err)
	}
	if _, err := store.Lookup("nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected not found from lookup, got %v", err)
	}
}

func TestLoadRejectsMalformedPresetFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if err := os.WriteFile(filepath.Join(dir, "bad.toml"), []byte("rules = ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load("bad", ScopeUser); err == nil || !strings.Contains(err.Error(), "PRS_PARSE") {
		t.Fatalf("expected PRS_PARSE error, got %v", err)
	}
	blob := "version = 1\n[[rules]]\npattern = \"x\"\neffect = \"sometimes\"\n"
	if err := os.WriteFile(filepath.Join(dir, "effect.toml"), []byte(blob), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load("effect", ScopeUser); !errors.Is(err, ErrInvalidEffect) {
		t.Fatalf("expected invalid effect error, got %v", err)
	}
}

func TestLookupUserShadowsBuiltin(t *testing.T) {
	store := New(t.TempDir())
	builtin, err := store.Lookup("git")
	if err != nil {
		t.Fatalf("lookup builtin: %v", err)
	}
	if builtin.Scope != ScopeBuiltin || len(builtin.Rules) != 2 {
		t.Fatalf("unexpected builtin git preset %+v", builtin)
	}

	if _, err := store.Save("git", []Rule{{Pattern: "Bash(git push *)", Effect: Ask}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Lookup("git")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Scope != ScopeUser || got.Rules[0].Effect != Ask {
		t.Fatalf("expected user preset to shadow builtin, got %+v", got)
	}
}

func TestListIncludesBothScopes(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if _, err := store.Save("zeta", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save("git", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var user []string
	shadowed := false
	for _, e := range entries {
		if e.Scope == ScopeUser {
			user = append(user, e.Name)
		}
		if e.Scope == ScopeBuiltin && e.Name == "git" {
			shadowed = e.Shadowed
		}
	}
	if !reflect.DeepEqual(user, []string{"git", "zeta"}) {
		t.Fatalf("unexpected user presets %v", user)
	}
	if !shadowed {
		t.Fatalf("expected builtin git to be marked shadowed")
	}
	if len(entries) != len(BuiltinNames())+2 {
		t.Fatalf("expected %d entries, got %d", len(BuiltinNames())+2, len(entries))
	}
}

func TestListMissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "missing"))
	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != len(BuiltinNames()) {
		t.Fatalf("expected only builtins, got %d", len(entries))
	}
}

func TestParseEffect(t *testing.T) {
	tests := []struct {
		in      string
		want    Effect
		wantErr bool
	}{
		{"allow", Allow, false},
		{" Deny ", Deny, false},
		{"ASK", Ask, false},
		{"", "", true},
		{"block", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEffect(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEffect(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestBuiltinReturnsCopy(t *testing.T) {
	p, ok := Builtin("docker")
	if !ok {
		t.Fatalf("expected docker builtin")
	}
	p.Rules[0].Effect = Deny
	again, _ := Builtin("docker")
	if again.Rules[0].Effect != Allow {
		t.Fatalf("builtin preset was mutated through a returned copy")
	}
}
