package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "skillset", "config.toml")
	}
	return filepath.Join(home, ".config", "skillset", "config.toml")
}

// ExpandPathWithHome expands a leading "~" against home.
func ExpandPathWithHome(path, home string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		if home == "" {
			return "", errors.New("home directory unknown")
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

// Paths are the absolute locations every component is constructed with.
type Paths struct {
	PresetsDir       string `json:"presetsDir"`
	CacheDir         string `json:"cacheDir"`
	GlobalSkillsDir  string `json:"globalSkillsDir"`
	AuditLog         string `json:"auditLog,omitempty"`
	ProjectDir       string `json:"projectDir"`
	SettingsFile     string `json:"settingsFile"`
	ProjectSkillsDir string `json:"projectSkillsDir"`
}

// ResolvePaths expands the configured roots against home and projectDir.
func ResolvePaths(cfg Config, home, projectDir string) (Paths, error) {
	var out Paths
	for _, p := range []struct {
		dst *string
		src string
	}{
		{&out.PresetsDir, cfg.Paths.PresetsDir},
		{&out.CacheDir, cfg.Paths.CacheDir},
		{&out.GlobalSkillsDir, cfg.Paths.GlobalSkillsDir},
	} {
		expanded, err := ExpandPathWithHome(p.src, home)
		if err != nil {
			return Paths{}, err
		}
		*p.dst = filepath.Clean(expanded)
	}
	if cfg.Paths.AuditLog != "" {
		expanded, err := ExpandPathWithHome(cfg.Paths.AuditLog, home)
		if err != nil {
			return Paths{}, err
		}
		out.AuditLog = filepath.Clean(expanded)
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return Paths{}, err
	}
	out.ProjectDir = abs
	out.SettingsFile = filepath.Join(abs, cfg.Project.SettingsFile)
	out.ProjectSkillsDir = filepath.Join(abs, cfg.Project.SkillsDir)
	return out, nil
}

// SkillsDir returns the skills directory for scope.
func (p Paths) SkillsDir(scope Scope) string {
	if scope == ScopeGlobal {
		return p.GlobalSkillsDir
	}
	return p.ProjectSkillsDir
}
