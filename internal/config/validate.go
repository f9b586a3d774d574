package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"text":   {},
	"json":   {},
	"logfmt": {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("CFG_VERSION: unsupported version %d", cfg.Version)
	}
	if cfg.Paths.PresetsDir == "" || cfg.Paths.CacheDir == "" || cfg.Paths.GlobalSkillsDir == "" {
		return fmt.Errorf("CFG_PATHS: missing presets, cache or global skills dir")
	}
	for _, rel := range []string{cfg.Project.SettingsFile, cfg.Project.SkillsDir} {
		if rel == "" {
			return fmt.Errorf("CFG_PROJECT: missing project settings file or skills dir")
		}
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return fmt.Errorf("CFG_PROJECT: %q must be relative to the project", rel)
		}
	}
	if strings.TrimSpace(cfg.Fetch.Host) == "" || strings.ContainsAny(cfg.Fetch.Host, "/: ") {
		return fmt.Errorf("CFG_FETCH: invalid fetch host %q", cfg.Fetch.Host)
	}
	d, err := time.ParseDuration(cfg.Fetch.Timeout)
	if err != nil {
		return fmt.Errorf("CFG_FETCH: invalid timeout %q: %w", cfg.Fetch.Timeout, err)
	}
	if d < 0 {
		return fmt.Errorf("CFG_FETCH: negative timeout %q", cfg.Fetch.Timeout)
	}
	if _, ok := allowedLogLevels[strings.ToLower(cfg.Logging.Level)]; !ok {
		return fmt.Errorf("CFG_LOGGING: invalid level %q", cfg.Logging.Level)
	}
	if _, ok := allowedLogFormats[strings.ToLower(cfg.Logging.Format)]; !ok {
		return fmt.Errorf("CFG_LOGGING: invalid format %q", cfg.Logging.Format)
	}
	return nil
}
