package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lear94/raven/internal/recipe"
)

func TestSearch_MatchesByName(t *testing.T) {
	set := recipe.RecipeSet{
		"zlib":    {Name: "zlib", Description: "Compression library"},
		"openssl": {Name: "openssl", Description: "TLS toolkit"},
	}
	results := Search("zlib", set)
	require.NotEmpty(t, results)
	assert.Equal(t, recipe.PackageName("zlib"), results[0].Name)
}

func TestSearch_MatchesByDescription(t *testing.T) {
	set := recipe.RecipeSet{
		"zlib":    {Name: "zlib", Description: "Compression library"},
		"openssl": {Name: "openssl", Description: "TLS toolkit"},
	}
	results := Search("compression", set)
	require.NotEmpty(t, results)
	assert.Equal(t, recipe.PackageName("zlib"), results[0].Name)
}

func TestSearch_NoMatch(t *testing.T) {
	set := recipe.RecipeSet{
		"zlib": {Name: "zlib", Description: "Compression library"},
	}
	results := Search("xyznonexistent", set)
	assert.Empty(t, results)
}
