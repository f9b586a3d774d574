package preset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPresetNotFound    = errors.New("PRS_NOT_FOUND: preset not found")
	ErrInvalidEffect     = errors.New("PRS_INVALID_EFFECT: effect must be allow, deny or ask")
	ErrInvalidRule       = errors.New("PRS_INVALID_RULE: invalid permission rule")
	ErrInvalidPresetName = errors.New("PRS_INVALID_NAME: invalid preset name")
)

// Effect is the outcome a permission rule assigns to an action pattern.
type Effect string

const (
	Allow Effect = "allow"
	Deny  Effect = "deny"
	Ask   Effect = "ask"
)

// Effects lists every effect in the order the settings file stores them.
var Effects = []Effect{Allow, Deny, Ask}

func ParseEffect(s string) (Effect, error) {
	switch e := Effect(strings.ToLower(strings.TrimSpace(s))); e {
	case Allow, Deny, Ask:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEffect, s)
}

// Rule pairs an action pattern such as "Bash(git *)" with an effect.
type Rule struct {
	Pattern string `toml:"pattern" json:"pattern"`
	Effect  Effect `toml:"effect" json:"effect"`
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	_, err := ParseEffect(string(r.Effect))
	return err
}

type Scope string

const (
	ScopeBuiltin Scope = "builtin"
	ScopeUser    Scope = "user"
)

type Preset struct {
	Name  string `json:"name"`
	Scope Scope  `json:"scope"`
	Rules []Rule `json:"rules"`
}

// Entry identifies a preset without its rules.
type Entry struct {
	Name  string `json:"name"`
	Scope Scope  `json:"scope"`
	// Shadowed is set on a builtin entry hidden by a user preset of the same name.
	Shadowed bool `json:"shadowed,omitempty"`
}

// ValidateName rejects names that cannot be stored as a single file.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidPresetName)
	case strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidPresetName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidPresetName, name)
	}
	return nil
}
