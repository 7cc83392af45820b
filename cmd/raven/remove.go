package main

import (
	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/recipe"
)

var removeCmd = &cobra.Command{
	Use:   "remove <pkg>...",
	Short: "Detach each named package",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d, err := newDriver()
		if err != nil {
			fail(err)
			return
		}
		defer d.Store.Close()

		names := make([]recipe.PackageName, len(args))
		for i, a := range args {
			names[i] = recipe.PackageName(a)
		}

		if err := d.Remove(names); err != nil {
			fail(err)
			return
		}
	},
}
