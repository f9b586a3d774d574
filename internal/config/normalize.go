package config

func Normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Paths.PresetsDir == "" {
		cfg.Paths.PresetsDir = def.Paths.PresetsDir
	}
	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = def.Paths.CacheDir
	}
	if cfg.Paths.GlobalSkillsDir == "" {
		cfg.Paths.GlobalSkillsDir = def.Paths.GlobalSkillsDir
	}
	if cfg.Project.SettingsFile == "" {
		cfg.Project.SettingsFile = def.Project.SettingsFile
	}
	if cfg.Project.SkillsDir == "" {
		cfg.Project.SkillsDir = def.Project.SkillsDir
	}
	if cfg.Fetch.Host == "" {
		cfg.Fetch.Host = def.Fetch.Host
	}
	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = def.Fetch.Timeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg
}
