package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"skillset/internal/fsutil"
)

// Ensure loads the config at path, writing the defaults there first when the
// file does not exist. created reports whether the file was written.
func Ensure(path string) (cfg Config, created bool, err error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err = Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, false, err
	}
	cfg = DefaultConfig()
	if _, err := Save(path, cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Load reads and validates the config at path. An empty file yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if len(bytes.TrimSpace(data)) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("CFG_PARSE: %s: %w", path, err)
		}
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path. A file that already holds the same encoding is
// left untouched; written reports whether the file changed.
func Save(path string, cfg Config) (written bool, err error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("CFG_ENCODE: %w", err)
	}
	return fsutil.WriteIfChanged(path, blob, 0o644)
}
