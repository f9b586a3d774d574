package config

import "time"

// Config is the frozen v1 global schema.
type Config struct {
	Version int           `toml:"version"`
	Paths   PathsConfig   `toml:"paths"`
	Project ProjectConfig `toml:"project"`
	Fetch   FetchConfig   `toml:"fetch"`
	Logging LoggingConfig `toml:"logging"`
}

// PathsConfig holds the per-user roots. Values may start with "~/".
type PathsConfig struct {
	PresetsDir      string `toml:"presets_dir" json:"presetsDir"`
	CacheDir        string `toml:"cache_dir" json:"cacheDir"`
	GlobalSkillsDir string `toml:"global_skills_dir" json:"globalSkillsDir"`
	AuditLog        string `toml:"audit_log" json:"auditLog"`
}

// ProjectConfig holds paths relative to the project directory.
type ProjectConfig struct {
	SettingsFile string `toml:"settings_file" json:"settingsFile"`
	SkillsDir    string `toml:"skills_dir" json:"skillsDir"`
}

type FetchConfig struct {
	Host        string `toml:"host" json:"host"`
	Timeout     string `toml:"timeout" json:"timeout"`
	SSHFallback bool   `toml:"ssh_fallback" json:"sshFallback"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Scope represents where skills are linked: the user's global skills
// directory or the project-local one.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// FetchTimeout parses Fetch.Timeout. Validate guarantees it parses.
func (c Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0
	}
	return d
}
