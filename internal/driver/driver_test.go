package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rverr"
	"github.com/lear94/raven/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	base := t.TempDir()
	s, err := store.Open(filepath.Join(base, "metadata.db"), filepath.Join(base, "stage"), filepath.Join(base, "hostroot"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecipe(name, version string, deps ...string) *recipe.Recipe {
	return &recipe.Recipe{
		Name:            recipe.PackageName(name),
		VersionString:   version,
		RawDependencies: deps,
		SourceURL:       "https://example.invalid/" + name + ".tar.gz",
		SHA256Sum:       recipe.HashSum("abcdef0000000000000000000000000000000000000000000000000000000000"[:64]),
	}
}

func TestInstall_ResolveFailurePropagates(t *testing.T) {
	set := recipe.RecipeSet{
		"app": testRecipe("app", "1.0.0", "ghost"),
	}
	d := New(set, nil, openTestStore(t), nil)
	err := d.Install(context.Background(), []recipe.PackageName{"app"})
	require.Error(t, err)
	var depErr *rverr.DependencyError
	assert.ErrorAs(t, err, &depErr)
}

func TestRemove_ReverseDependencyRefusal(t *testing.T) {
	s := openTestStore(t)
	artifact := t.TempDir()
	require.NoError(t, s.InstallPackage(testRecipe("base", "1.0.0"), artifact))
	require.NoError(t, s.InstallPackage(testRecipe("app", "1.0.0", "base"), artifact))

	d := New(recipe.RecipeSet{}, nil, s, nil)
	err := d.Remove([]recipe.PackageName{"base"})
	require.Error(t, err)
	var depErr *rverr.DependencyError
	assert.ErrorAs(t, err, &depErr)
}

func TestUpgrade_NothingInstalled(t *testing.T) {
	d := New(recipe.RecipeSet{}, nil, openTestStore(t), nil)
	require.NoError(t, d.Upgrade(context.Background()))
}

func TestUpgrade_SkipsUpToDatePackages(t *testing.T) {
	s := openTestStore(t)
	artifact := t.TempDir()
	require.NoError(t, s.InstallPackage(testRecipe("zlib", "1.3.1"), artifact))

	set := recipe.RecipeSet{"zlib": testRecipe("zlib", "1.3.1")}
	d := New(set, nil, s, nil)
	require.NoError(t, d.Upgrade(context.Background()))
}
