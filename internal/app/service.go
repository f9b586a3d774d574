package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"skillset/internal/audit"
	"skillset/internal/config"
	"skillset/internal/detect"
	"skillset/internal/doctor"
	"skillset/internal/permission"
	"skillset/internal/preset"
	"skillset/internal/repocache"
	"skillset/internal/settings"
	"skillset/internal/skilllink"
)

var ErrNothingApplied = errors.New("APP_NOTHING_APPLIED: no project settings to save")

// repoPermissionFiles are looked up at a repo root, first match wins.
var repoPermissionFiles = []string{"settings.json", "permissions.json", "claude-settings.json"}

type Options struct {
	ConfigPath string
	ProjectDir string
	Home       string
	// LogLevel overrides logging.level from the config when set.
	LogLevel  string
	LogOutput io.Writer
	Fetcher   repocache.Fetcher
}

type Service struct {
	ConfigPath string
	Config     config.Config
	Paths      config.Paths
	Logger     *log.Logger

	Presets  *preset.Store
	Resolver *permission.Resolver
	Settings *settings.Writer
	Cache    *repocache.Cache
	Linker   *skilllink.Linker
	Doctor   *doctor.Service
	Audit    *audit.Logger
}

func New(opts Options) (*Service, error) {
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("APP_HOME: %w", err)
		}
		home = h
	}
	configPath := opts.ConfigPath
	if configPath == "" {
		if opts.Home != "" {
			configPath = filepath.Join(home, ".config", "skillset", "config.toml")
		} else {
			configPath = config.DefaultConfigPath()
		}
	}
	cfg, createdConfig, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		projectDir = cwd
	}
	paths, err := config.ResolvePaths(cfg, home, projectDir)
	if err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(out, cfg.Logging, opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if createdConfig {
		logger.Info("wrote default config", "path", configPath)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = repocache.NewGitFetcher(cfg.Fetch.Host, cfg.FetchTimeout(), cfg.Fetch.SSHFallback)
	}
	presets := preset.New(paths.PresetsDir)
	cache := repocache.New(paths.CacheDir, fetcher, logger.WithPrefix("cache"))
	linker := skilllink.New(cache, logger.WithPrefix("link"))
	writer := settings.NewWriter(paths.SettingsFile)
	doctorSvc := &doctor.Service{
		ConfigPath:   configPath,
		ProjectDir:   paths.ProjectDir,
		SettingsPath: paths.SettingsFile,
		SkillsDirs:   []string{paths.GlobalSkillsDir, paths.ProjectSkillsDir},
		Presets:      presets,
		Cache:        cache,
		Linker:       linker,
	}
	return &Service{
		ConfigPath: configPath,
		Config:     cfg,
		Paths:      paths,
		Logger:     logger,
		Presets:    presets,
		Resolver:   &permission.Resolver{Presets: presets},
		Settings:   writer,
		Cache:      cache,
		Linker:     linker,
		Doctor:     doctorSvc,
		Audit:      audit.New(paths.AuditLog),
	}, nil
}

// NewLogger builds the diagnostics logger. override replaces cfg.Level.
func NewLogger(w io.Writer, cfg config.LoggingConfig, override string) (*log.Logger, error) {
	name := cfg.Level
	if override != "" {
		name = override
	}
	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("CFG_LOGGING: %w", err)
	}
	formatter := log.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, log.Options{Level: level, Formatter: formatter}), nil
}

func (s *Service) audit(op string, err error, fields map[string]string) {
	if aerr := s.Audit.Result(op, err, fields); aerr != nil {
		s.Logger.Warn("audit log write failed", "op", op, "err", aerr)
	}
}

type ApplyResult struct {
	Presets      []preset.Entry `json:"presets"`
	Detected     bool           `json:"detected"`
	SettingsPath string         `json:"settingsPath"`
	Diff         settings.Diff  `json:"diff"`
	Created      bool           `json:"created"`
	Written      bool           `json:"written"`
	DryRun       bool           `json:"dryRun"`
}

// Apply merges the named presets into the project settings. With no names
// the presets are picked from the project's detected types; if nothing is
// detected nothing is written.
func (s *Service) Apply(names []string, dryRun bool) (ApplyResult, error) {
	res := ApplyResult{SettingsPath: s.Paths.SettingsFile, DryRun: dryRun}
	if len(names) == 0 {
		res.Detected = true
		names = detect.ProjectTypes(s.Paths.ProjectDir)
		if len(names) == 0 {
			s.Logger.Info("no project type detected", "dir", s.Paths.ProjectDir)
			return res, nil
		}
		s.Logger.Info("detected project types", "presets", strings.Join(names, ","))
	}
	set, used, err := s.Resolver.Resolve(names)
	if err != nil {
		s.audit("apply", err, map[string]string{"presets": strings.Join(names, ",")})
		return res, err
	}
	for _, p := range used {
		res.Presets = append(res.Presets, preset.Entry{Name: p.Name, Scope: p.Scope})
	}
	out, err := s.Settings.Apply(set, dryRun)
	if err != nil {
		s.audit("apply", err, map[string]string{"presets": strings.Join(names, ",")})
		return res, err
	}
	res.Diff, res.Created, res.Written = out.Diff, out.Created, out.Written
	if !dryRun {
		s.audit("apply", nil, map[string]string{
			"presets": strings.Join(names, ","),
			"changes": strconv.Itoa(len(out.Diff)),
			"path":    out.Path,
		})
	}
	return res, nil
}

type SaveResult struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Rules int    `json:"rules"`
}

// Save stores the project's current permissions as the user preset name.
func (s *Service) Save(name string) (SaveResult, error) {
	doc, exists, err := s.Settings.Load()
	if err != nil {
		s.audit("save", err, map[string]string{"name": name})
		return SaveResult{}, err
	}
	if !exists {
		err := fmt.Errorf("%w: %s does not exist", ErrNothingApplied, s.Paths.SettingsFile)
		s.audit("save", err, map[string]string{"name": name})
		return SaveResult{}, err
	}
	rules := doc.Rules()
	path, err := s.Presets.Save(name, rules)
	s.audit("save", err, map[string]string{"name": name, "rules": strconv.Itoa(len(rules))})
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Name: name, Path: path, Rules: len(rules)}, nil
}

type AddResult struct {
	Repo        repocache.Repo   `json:"repo"`
	Scope       config.Scope     `json:"scope"`
	SkillsDir   string           `json:"skillsDir"`
	Linked      []skilllink.Link `json:"linked"`
	Permissions *MergeResult     `json:"permissions,omitempty"`
}

// MergeResult describes repo-supplied permissions merged into the project.
type MergeResult struct {
	Source       string        `json:"source"`
	SettingsPath string        `json:"settingsPath"`
	Diff         settings.Diff `json:"diff"`
	Written      bool          `json:"written"`
}

// Add caches the repo id, links each of its skills into the global or
// project skills directory, then merges the permissions file at the repo
// root, if any, into the project settings. The first link error stops the
// operation; links made before it stay in place.
func (s *Service) Add(ctx context.Context, id string, global bool) (AddResult, error) {
	scope := config.ScopeProject
	if global {
		scope = config.ScopeGlobal
	}
	res := AddResult{Scope: scope, SkillsDir: s.Paths.SkillsDir(scope)}
	fields := map[string]string{"repo": id, "scope": string(scope)}

	parsed, err := repocache.ParseID(id)
	if err != nil {
		s.audit("add", err, fields)
		return res, err
	}
	repo, err := s.Cache.Ensure(ctx, parsed.String())
	if err != nil {
		s.audit("add", err, fields)
		return res, err
	}
	res.Repo = repo

	skills, err := skilllink.Discover(repo.Path)
	if err != nil {
		s.audit("add", err, fields)
		return res, err
	}
	for _, sk := range skills {
		name := sk.Name
		if sk.Rel == "." {
			name = parsed.Name
		}
		link, err := s.Linker.Link(sk.Path, filepath.Join(res.SkillsDir, name))
		if err != nil {
			fields["linked"] = strconv.Itoa(len(res.Linked))
			s.audit("add", err, fields)
			return res, err
		}
		res.Linked = append(res.Linked, link)
	}
	fields["linked"] = strconv.Itoa(len(res.Linked))

	merged, err := s.mergeRepoPermissions(repo.Path)
	if err != nil {
		s.audit("add", err, fields)
		return res, err
	}
	res.Permissions = merged
	if len(skills) == 0 && merged == nil {
		s.Logger.Warn("no skills or permissions found in repo", "repo", repo.ID)
	}
	s.audit("add", nil, fields)
	return res, nil
}

// mergeRepoPermissions merges the permission lists of the first permissions
// file found at the repo root. Every other key in that file is ignored.
func (s *Service) mergeRepoPermissions(repoPath string) (*MergeResult, error) {
	for _, name := range repoPermissionFiles {
		path := filepath.Join(repoPath, name)
		blob, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		doc, err := settings.Parse(blob)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rules := doc.Rules()
		if len(rules) == 0 {
			return nil, nil
		}
		out, err := s.Settings.Apply(permission.Merge(rules), false)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Source: path, SettingsPath: out.Path, Diff: out.Diff, Written: out.Written}, nil
	}
	return nil, nil
}

// Update refreshes one cached repo, or every cached repo when id is empty.
// A single-repo failure is returned as an error; in the batch case failures
// are only recorded in the outcomes. Skill links are not touched.
func (s *Service) Update(ctx context.Context, id string) ([]repocache.Outcome, error) {
	if id != "" {
		repo, err := s.Cache.Update(ctx, id)
		s.audit("update", err, map[string]string{"repo": id})
		if err != nil {
			return nil, err
		}
		return []repocache.Outcome{{ID: repo.ID, Revision: repo.Revision}}, nil
	}
	outcomes, err := s.Cache.UpdateAll(ctx)
	if err != nil {
		s.audit("update", err, nil)
		return nil, err
	}
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	s.audit("update", nil, map[string]string{"repos": strconv.Itoa(len(outcomes)), "failed": strconv.Itoa(failed)})
	return outcomes, nil
}

// Remove deletes the link name from the global or project skills directory.
func (s *Service) Remove(name string, global bool) (skilllink.Link, error) {
	scope := config.ScopeProject
	if global {
		scope = config.ScopeGlobal
	}
	fields := map[string]string{"name": name, "scope": string(scope)}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		err := fmt.Errorf("%w: invalid skill name %q", skilllink.ErrSkillNotFound, name)
		s.audit("remove", err, fields)
		return skilllink.Link{}, err
	}
	link, err := s.Linker.Unlink(filepath.Join(s.Paths.SkillsDir(scope), name))
	s.audit("remove", err, fields)
	return link, err
}

type Listing struct {
	GlobalSkillsDir  string           `json:"globalSkillsDir"`
	GlobalSkills     []skilllink.Link `json:"globalSkills"`
	ProjectSkillsDir string           `json:"projectSkillsDir"`
	ProjectSkills    []skilllink.Link `json:"projectSkills"`
	Presets          []preset.Entry   `json:"presets"`
	Repos            []repocache.Repo `json:"repos"`
}

func (s *Service) List() (Listing, error) {
	out := Listing{GlobalSkillsDir: s.Paths.GlobalSkillsDir, ProjectSkillsDir: s.Paths.ProjectSkillsDir}
	var err error
	if out.GlobalSkills, err = s.Linker.List(s.Paths.GlobalSkillsDir); err != nil {
		return Listing{}, err
	}
	if out.ProjectSkills, err = s.Linker.List(s.Paths.ProjectSkillsDir); err != nil {
		return Listing{}, err
	}
	if out.Presets, err = s.Presets.List(); err != nil {
		return Listing{}, err
	}
	if out.Repos, err = s.Cache.List(); err != nil {
		return Listing{}, err
	}
	return out, nil
}

func (s *Service) DoctorRun() doctor.Report {
	return s.Doctor.Run()
}
