package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"skillset/internal/app"
	"skillset/internal/preset"
	"skillset/internal/skilllink"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ex ExitCoder
	if errors.As(err, &ex) {
		return ex.ExitCode()
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var configPath string
	var projectDir string
	var logLevel string
	var jsonOutput bool

	newSvc := func() (*app.Service, error) {
		return app.New(app.Options{ConfigPath: configPath, ProjectDir: projectDir, LogLevel: logLevel})
	}

	cmd := &cobra.Command{
		Use:           "skillset",
		Short:         "Manage Claude permission presets and skills",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "project directory (default: current directory)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newApplyCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newSaveCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newAddCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newUpdateCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newRemoveCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newListCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

func newApplyCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply [preset...]",
		Short: "Merge permission presets into the project settings",
		Long:  "Merge permission presets into the project settings. Without arguments, presets are picked from the detected project type.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.Apply(args, dryRun)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, res, "")
			}
			if len(res.Presets) == 0 {
				fmt.Println("No project type detected; nothing applied")
				return nil
			}
			names := make([]string, 0, len(res.Presets))
			for _, p := range res.Presets {
				names = append(names, p.Name)
			}
			label := "Applying"
			if res.Detected {
				label = "Detected"
			}
			fmt.Printf("%s: %s\n", label, strings.Join(names, ", "))
			fmt.Print(renderDiff(res.Diff))
			switch {
			case len(res.Diff) == 0:
				fmt.Println(dimStyle.Render("No changes to " + res.SettingsPath))
			case res.DryRun:
				fmt.Printf("Would update %s (%d change(s))\n", res.SettingsPath, len(res.Diff))
			default:
				fmt.Printf("Updated %s (%d change(s))\n", res.SettingsPath, len(res.Diff))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show changes without writing")
	return cmd
}

func newSaveCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name>",
		Short: "Save the project's current permissions as a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := preset.ValidateName(args[0]); err != nil {
				return err
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.Save(args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, res, fmt.Sprintf("Saved preset '%s' to %s (%d rule(s))", res.Name, res.Path, res.Rules))
		},
	}
}

func newAddCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "add <owner/repo>",
		Short: "Fetch a repository and link its skills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.Add(context.Background(), args[0], global)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, res, "")
			}
			if len(res.Linked) > 0 {
				fmt.Printf("Linked %d skill(s) to %s:\n", len(res.Linked), res.SkillsDir)
				for _, l := range res.Linked {
					fmt.Printf("  - %s\n", linkName(l))
				}
			}
			if res.Permissions != nil && len(res.Permissions.Diff) > 0 {
				fmt.Printf("Merged permissions from %s into %s:\n", res.Permissions.Source, res.Permissions.SettingsPath)
				fmt.Print(renderDiff(res.Permissions.Diff))
			}
			if len(res.Linked) == 0 && res.Permissions == nil {
				fmt.Println("No skills or permissions found in repo")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "link into the global skills directory")
	return cmd
}

func newUpdateCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "update [owner/repo]",
		Aliases: []string{"pull"},
		Short:   "Refresh one cached repository, or all of them",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			outcomes, err := svc.Update(context.Background(), id)
			if err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				if !o.OK() {
					failed++
				}
			}
			if *jsonOutput {
				if err := print(true, outcomes, ""); err != nil {
					return err
				}
			} else {
				if len(outcomes) == 0 {
					fmt.Println("No cached repositories")
				}
				for _, o := range outcomes {
					fmt.Println(renderOutcome(o))
				}
			}
			if failed > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("REPO_UPDATE: %d of %d repositories failed to update", failed, len(outcomes))}
			}
			return nil
		},
	}
}

func newRemoveCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:     "remove <skill>",
		Aliases: []string{"rm", "unlink"},
		Short:   "Remove a linked skill",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			link, err := svc.Remove(args[0], global)
			if err != nil {
				return err
			}
			return print(*jsonOutput, link, fmt.Sprintf("Removed %s from %s", link.Name, svc.Paths.SkillsDir(scopeOf(global))))
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "remove from the global skills directory")
	return cmd
}

func newListCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List linked skills, presets and cached repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			listing, err := svc.List()
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, listing, "")
			}
			printLinks("Global skills", listing.GlobalSkillsDir, listing.GlobalSkills)
			printLinks("Project skills", listing.ProjectSkillsDir, listing.ProjectSkills)
			fmt.Println(headerStyle.Render("Presets:"))
			for _, p := range listing.Presets {
				suffix := ""
				if p.Shadowed {
					suffix = dimStyle.Render(" (shadowed by user preset)")
				}
				fmt.Printf("  %s [%s]%s\n", p.Name, p.Scope, suffix)
			}
			if len(listing.Repos) > 0 {
				fmt.Println(headerStyle.Render("Cached repositories:"))
				for _, r := range listing.Repos {
					line := "  " + r.ID
					if r.Revision != "" {
						line += " @ " + r.Revision
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Run diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.DoctorRun()
			if *jsonOutput {
				return print(true, report, "")
			}
			if len(report.DetectedProjects) > 0 {
				fmt.Printf("detected project types: %s\n", strings.Join(report.DetectedProjects, ", "))
			}
			if report.Healthy && len(report.Findings) == 0 {
				fmt.Println("healthy")
				return nil
			}
			if report.Healthy {
				fmt.Println("healthy, with notes:")
			} else {
				fmt.Println(failStyle.Render("issues found:"))
			}
			for _, f := range report.Findings {
				fmt.Printf("- [%s] %s: %s\n", f.Level, f.Code, f.Message)
			}
			return nil
		},
	}
}

func printLinks(title, dir string, links []skilllink.Link) {
	if len(links) == 0 {
		return
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%s):", title, dir)))
	for _, l := range links {
		fmt.Printf("  %s\n", linkName(l))
	}
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}
