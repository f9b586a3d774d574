package doctor

import (
	"os"

	"golang.org/x/mod/semver"

	"skillset/internal/config"
	"skillset/internal/detect"
	"skillset/internal/preset"
	"skillset/internal/repocache"
	"skillset/internal/settings"
	"skillset/internal/skilllink"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy          bool      `json:"healthy"`
	Findings         []Finding `json:"findings"`
	DetectedProjects []string  `json:"detectedProjects,omitempty"`
}

type Service struct {
	ConfigPath   string
	ProjectDir   string
	SettingsPath string
	SkillsDirs   []string
	Presets      *preset.Store
	Cache        *repocache.Cache
	Linker       *skilllink.Linker
}

func (s *Service) Run() Report {
	findings := []Finding{}
	add := func(code, level, msg string) {
		findings = append(findings, Finding{Code: code, Level: level, Message: msg})
	}

	if _, err := os.Stat(s.ConfigPath); err != nil {
		add("DOC_CONFIG_MISSING", "warn", err.Error())
	} else if _, err := config.Load(s.ConfigPath); err != nil {
		add("DOC_CONFIG_INVALID", "error", err.Error())
	}

	if s.SettingsPath != "" {
		if _, exists, err := settings.NewWriter(s.SettingsPath).Load(); err != nil {
			add("DOC_SETTINGS_MALFORMED", "error", err.Error())
		} else if !exists {
			add("DOC_SETTINGS_ABSENT", "info", s.SettingsPath+" does not exist yet")
		}
	}

	if s.Presets != nil {
		entries, err := s.Presets.List()
		if err != nil {
			add("DOC_PRESETS_UNREADABLE", "error", err.Error())
		}
		for _, e := range entries {
			if e.Scope != preset.ScopeUser {
				continue
			}
			if _, err := s.Presets.Load(e.Name, preset.ScopeUser); err != nil {
				add("DOC_PRESET_INVALID", "warn", err.Error())
			}
		}
	}

	if s.Cache != nil {
		if err := s.Cache.CheckState(); err != nil {
			add("DOC_CACHE_STATE_INVALID", "warn", err.Error())
		}
	}

	if s.Linker != nil {
		for _, dir := range s.SkillsDirs {
			links, err := s.Linker.List(dir)
			if err != nil {
				add("DOC_SKILLS_UNREADABLE", "error", err.Error())
				continue
			}
			for _, l := range links {
				if l.Dangling {
					add("DOC_LINK_DANGLING", "warn", l.Path+" -> "+l.Target+" no longer exists")
				}
			}
		}
	}

	if semver.Prerelease("v"+config.Version) != "" {
		add("DOC_DEV_BUILD", "info", "running development build "+config.Version)
	}

	var detected []string
	if s.ProjectDir != "" {
		detected = detect.ProjectTypes(s.ProjectDir)
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Findings: findings, DetectedProjects: detected}
}
