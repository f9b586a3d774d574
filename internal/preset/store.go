package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"skillset/internal/fsutil"
)

const FileVersion = 1

const fileExt = ".toml"

// presetFile is the on-disk form of a user preset.
type presetFile struct {
	Version int    `toml:"version"`
	Rules   []Rule `toml:"rules"`
}

// Store loads builtin presets and loads/saves user presets under Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+fileExt)
}

// Load returns the preset name from exactly one scope.
func (s *Store) Load(name string, scope Scope) (Preset, error) {
	if err := ValidateName(name); err != nil {
		return Preset{}, err
	}
	switch scope {
	case ScopeBuiltin:
		if p, ok := Builtin(name); ok {
			return p, nil
		}
		return Preset{}, fmt.Errorf("%w: builtin preset %q", ErrPresetNotFound, name)
	case ScopeUser:
		return s.loadUser(name)
	}
	return Preset{}, fmt.Errorf("%w: unknown scope %q", ErrPresetNotFound, scope)
}

// Lookup returns the user preset name if one exists, else the builtin.
func (s *Store) Lookup(name string) (Preset, error) {
	p, err := s.Load(name, ScopeUser)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPresetNotFound) {
		return Preset{}, err
	}
	return s.Load(name, ScopeBuiltin)
}

func (s *Store) loadUser(name string) (Preset, error) {
	blob, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Preset{}, fmt.Errorf("%w: user preset %q", ErrPresetNotFound, name)
		}
		return Preset{}, err
	}
	var pf presetFile
	if err := toml.Unmarshal(blob, &pf); err != nil {
		return Preset{}, fmt.Errorf("PRS_PARSE: preset %q: %w", name, err)
	}
	if pf.Version == 0 {
		pf.Version = FileVersion
	}
	if pf.Version != FileVersion {
		return Preset{}, fmt.Errorf("PRS_VERSION: preset %q: unsupported version %d", name, pf.Version)
	}
	for i := range pf.Rules {
		if err := pf.Rules[i].Validate(); err != nil {
			return Preset{}, fmt.Errorf("preset %q rule %d: %w", name, i, err)
		}
		pf.Rules[i].Effect, _ = ParseEffect(string(pf.Rules[i].Effect))
	}
	return Preset{Name: name, Scope: ScopeUser, Rules: pf.Rules}, nil
}

// Save writes rules as the user preset name, replacing any existing one.
// An identical file is left untouched. Concurrent saves of the same name
// are last-writer-wins.
func (s *Store) Save(name string, rules []Rule) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	pf := presetFile{Version: FileVersion, Rules: make([]Rule, 0, len(rules))}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("preset %q rule %d: %w", name, i, err)
		}
		r.Effect, _ = ParseEffect(string(r.Effect))
		pf.Rules = append(pf.Rules, r)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	blob, err := toml.Marshal(pf)
	if err != nil {
		return "", fmt.Errorf("PRS_ENCODE: %w", err)
	}
	path := s.path(name)
	if _, err := fsutil.WriteIfChanged(path, blob, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// List enumerates every preset in both scopes, builtins first, each scope
// sorted by name.
func (s *Store) List() ([]Entry, error) {
	users, err := s.userNames()
	if err != nil {
		return nil, err
	}
	shadow := map[string]struct{}{}
	for _, n := range users {
		shadow[n] = struct{}{}
	}
	out := make([]Entry, 0, len(builtins)+len(users))
	for _, n := range BuiltinNames() {
		_, hidden := shadow[n]
		out = append(out, Entry{Name: n, Scope: ScopeBuiltin, Shadowed: hidden})
	}
	for _, n := range users {
		out = append(out, Entry{Name: n, Scope: ScopeUser})
	}
	return out, nil
}

func (s *Store) userNames() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
