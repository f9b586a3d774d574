package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"skillset/internal/config"
)

func newVersionCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": config.Version,
				"commit":  config.Commit,
				"date":    config.Date,
			}
			if pre := semver.Prerelease("v" + config.Version); pre != "" {
				info["prerelease"] = pre[1:]
			}
			if *jsonOutput {
				return print(true, info, "")
			}
			fmt.Printf("skillset %s\ncommit: %s\nbuilt at: %s\n", config.Version, config.Commit, config.Date)
			return nil
		},
	}
}
