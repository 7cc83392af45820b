package main

import (
	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/config"
	"github.com/lear94/raven/internal/reposync"
	"github.com/lear94/raven/internal/rootlayout"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the recipe tree from its remote",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		layout := rootlayout.Resolve()
		if err := layout.EnsureDirs(); err != nil {
			fail(err)
			return
		}

		cfg, err := config.Load(layout.ConfigPath())
		if err != nil {
			fail(err)
			return
		}

		if err := reposync.Sync(cfg.RepoURL, layout.RecipesDir(), logger); err != nil {
			fail(err)
			return
		}
	},
}
