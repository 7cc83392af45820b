package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rverr"
)

func rec(name, version string, deps ...string) *recipe.Recipe {
	return &recipe.Recipe{
		Name:            recipe.PackageName(name),
		VersionString:   version,
		RawDependencies: deps,
		SourceURL:       "https://example.invalid/" + name + ".tar.gz",
		SHA256Sum:       recipe.HashSum(strings.Repeat("0", 64)),
	}
}

func TestResolve_LinearChain(t *testing.T) {
	set := recipe.RecipeSet{
		"a": rec("a", "1.0.0", "b"),
		"b": rec("b", "1.0.0", "c"),
		"c": rec("c", "1.0.0"),
	}
	order, err := Resolve([]recipe.PackageName{"a"}, set)
	require.NoError(t, err)
	assert.Equal(t, []recipe.PackageName{"c", "b", "a"}, order)
}

func TestResolve_Cycle(t *testing.T) {
	set := recipe.RecipeSet{
		"a": rec("a", "1.0.0", "b"),
		"b": rec("b", "1.0.0", "a"),
	}
	_, err := Resolve([]recipe.PackageName{"a"}, set)
	require.Error(t, err)
	var depErr *rverr.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Contains(t, depErr.Error(), "circular")
}

func TestResolve_MissingPackage(t *testing.T) {
	set := recipe.RecipeSet{}
	_, err := Resolve([]recipe.PackageName{"a"}, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolve_MissingDependency(t *testing.T) {
	set := recipe.RecipeSet{
		"a": rec("a", "1.0.0", "ghost"),
	}
	_, err := Resolve([]recipe.PackageName{"a"}, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependency")
}

func TestResolve_VersionMismatch(t *testing.T) {
	set := recipe.RecipeSet{
		"a": rec("a", "1.0.0", "b >=2.0.0"),
		"b": rec("b", "1.0.0"),
	}
	_, err := Resolve([]recipe.PackageName{"a"}, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version mismatch")
}

func TestResolve_DiamondDependency(t *testing.T) {
	set := recipe.RecipeSet{
		"app": rec("app", "1.0.0", "lib1", "lib2"),
		"lib1": rec("lib1", "1.0.0", "base"),
		"lib2": rec("lib2", "1.0.0", "base"),
		"base": rec("base", "1.0.0"),
	}
	order, err := Resolve([]recipe.PackageName{"app"}, set)
	require.NoError(t, err)
	require.Len(t, order, 4)
	assert.Equal(t, recipe.PackageName("app"), order[3])
	assert.Equal(t, recipe.PackageName("base"), order[0])
}

func TestResolve_MultipleTargetsTieBreak(t *testing.T) {
	set := recipe.RecipeSet{
		"a": rec("a", "1.0.0"),
		"b": rec("b", "1.0.0"),
	}
	order, err := Resolve([]recipe.PackageName{"b", "a"}, set)
	require.NoError(t, err)
	assert.Equal(t, []recipe.PackageName{"b", "a"}, order)
}
