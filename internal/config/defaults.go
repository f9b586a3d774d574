package config

const (
	SchemaVersion = 1
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Paths: PathsConfig{
			PresetsDir:      "~/.config/skillset/presets",
			CacheDir:        "~/.cache/skillset/repos",
			GlobalSkillsDir: "~/.claude/skills",
			AuditLog:        "~/.config/skillset/audit.log",
		},
		Project: ProjectConfig{
			SettingsFile: ".claude/settings.local.json",
			SkillsDir:    ".claude/skills",
		},
		Fetch: FetchConfig{
			Host:        "github.com",
			Timeout:     "2m",
			SSHFallback: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
