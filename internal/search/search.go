// Package search fuzzy-matches recipe names and descriptions against a
// query string, via github.com/sahilm/fuzzy.
package search

import (
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/lear94/raven/internal/recipe"
)

// Result is one matched recipe, ranked by fuzzy score.
type Result struct {
	Name        recipe.PackageName
	Description string
	Score       int
}

// searchSource adapts a RecipeSet to fuzzy.Source.
type searchSource struct {
	names []recipe.PackageName
	set   recipe.RecipeSet
}

func (s searchSource) String(i int) string {
	r := s.set[s.names[i]]
	return string(r.Name) + " " + r.Description
}

func (s searchSource) Len() int { return len(s.names) }

// Search returns the recipes in set that fuzzy-match query, most relevant
// first; recipes that do not match are left out.
func Search(query string, set recipe.RecipeSet) []Result {
	names := make([]recipe.PackageName, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	matches := fuzzy.FindFrom(query, searchSource{names: names, set: set})

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		r := set[names[m.Index]]
		results = append(results, Result{
			Name:        r.Name,
			Description: r.Description,
			Score:       m.Score,
		})
	}
	return results
}
