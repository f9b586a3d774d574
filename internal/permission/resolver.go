// Package permission merges presets into a single pattern → effect set.
//
// Conflicts are resolved syntactically: rules are keyed by their exact
// pattern string and a later rule replaces an earlier one. Two wildcard
// patterns that overlap when evaluated (for example "Bash(git *)" and
// "Bash(git push *)") stay independent entries.
package permission

import (
	"errors"
	"fmt"

	"skillset/internal/preset"
)

var ErrUnknownPreset = errors.New("PRS_UNKNOWN: unknown preset")

// Source supplies presets by name. *preset.Store satisfies it.
type Source interface {
	Lookup(name string) (preset.Preset, error)
}

// Set is an insertion-ordered mapping from pattern to effect. A pattern
// keeps the position of its first insertion when its effect is replaced.
type Set struct {
	order   []string
	effects map[string]preset.Effect
}

func NewSet() *Set {
	return &Set{effects: map[string]preset.Effect{}}
}

// Put records effect for pattern, replacing any earlier effect.
func (s *Set) Put(pattern string, effect preset.Effect) {
	if s.effects == nil {
		s.effects = map[string]preset.Effect{}
	}
	if _, ok := s.effects[pattern]; !ok {
		s.order = append(s.order, pattern)
	}
	s.effects[pattern] = effect
}

func (s *Set) Get(pattern string) (preset.Effect, bool) {
	if s == nil {
		return "", false
	}
	e, ok := s.effects[pattern]
	return e, ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Rules returns the set in insertion order.
func (s *Set) Rules() []preset.Rule {
	if s == nil {
		return nil
	}
	out := make([]preset.Rule, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, preset.Rule{Pattern: p, Effect: s.effects[p]})
	}
	return out
}

type Resolver struct {
	Presets Source
}

// Resolve loads each named preset and merges them in order; later presets
// win on identical patterns. It also returns the loaded presets, annotated
// with the scope each was loaded from. A name that cannot be a preset, such
// as "../x", is reported as unknown.
func (r *Resolver) Resolve(names []string) (*Set, []preset.Preset, error) {
	if r.Presets == nil {
		return nil, nil, fmt.Errorf("PRS_SETUP: no preset source configured")
	}
	loaded := make([]preset.Preset, 0, len(names))
	for _, name := range names {
		p, err := r.Presets.Lookup(name)
		if err != nil {
			if errors.Is(err, preset.ErrPresetNotFound) || errors.Is(err, preset.ErrInvalidPresetName) {
				return nil, nil, fmt.Errorf("%w %q", ErrUnknownPreset, name)
			}
			return nil, nil, err
		}
		loaded = append(loaded, p)
	}
	lists := make([][]preset.Rule, 0, len(loaded))
	for _, p := range loaded {
		lists = append(lists, p.Rules)
	}
	return Merge(lists...), loaded, nil
}

// Merge folds rule lists left to right into one set.
func Merge(lists ...[]preset.Rule) *Set {
	set := NewSet()
	for _, rules := range lists {
		for _, rule := range rules {
			set.Put(rule.Pattern, rule.Effect)
		}
	}
	return set
}
