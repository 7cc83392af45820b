package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/config"
	"github.com/lear94/raven/internal/rootlayout"
)

var (
	configShow    bool
	configSetRepo string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or modify the recipe repository URL",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		layout := rootlayout.Resolve()

		if configSetRepo != "" {
			cfg, err := config.SetRepoURL(layout.ConfigPath(), configSetRepo)
			if err != nil {
				fail(err)
				return
			}
			fmt.Println("repo_url =", cfg.RepoURL)
			return
		}

		cfg, err := config.Load(layout.ConfigPath())
		if err != nil {
			fail(err)
			return
		}
		fmt.Println("repo_url =", cfg.RepoURL)
	},
}

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "print the current configuration")
	configCmd.Flags().StringVar(&configSetRepo, "set-repo", "", "set the recipe repository URL")
}
