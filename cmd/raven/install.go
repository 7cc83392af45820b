package main

import (
	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/recipe"
)

var installCmd = &cobra.Command{
	Use:   "install <pkg>...",
	Short: "Resolve, build, and install the listed packages",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d, err := newDriver()
		if err != nil {
			fail(err)
			return
		}
		defer d.Store.Close()

		targets := make([]recipe.PackageName, len(args))
		for i, a := range args {
			targets[i] = recipe.PackageName(a)
		}

		if err := d.Install(cmd.Context(), targets); err != nil {
			fail(err)
			return
		}
	},
}
