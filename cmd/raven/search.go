package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rootlayout"
	"github.com/lear94/raven/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-match against recipe names",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		layout := rootlayout.Resolve()

		recipes, err := recipe.Load(layout.RecipesDir())
		if err != nil {
			fail(err)
			return
		}

		results := search.Search(args[0], recipes)
		for _, r := range results {
			fmt.Printf("%-20s %s\n", r.Name, r.Description)
		}
	},
}
