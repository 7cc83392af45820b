// Package driver binds the Resolver, Builder, and Transaction Manager into
// the install/remove/upgrade flows the CLI surface invokes, formatting any
// surfaced error into the single user-visible line the driver is
// responsible for printing.
package driver

import (
	"context"
	"fmt"

	"github.com/lear94/raven/internal/build"
	"github.com/lear94/raven/internal/logx"
	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/resolve"
	"github.com/lear94/raven/internal/store"
)

// Driver wires the core components together for one invocation.
type Driver struct {
	Recipes recipe.RecipeSet
	Builder *build.Builder
	Store   *store.Store
	Logger  logx.Logger
}

// New constructs a Driver over an already-loaded recipe set.
func New(recipes recipe.RecipeSet, builder *build.Builder, st *store.Store, logger logx.Logger) *Driver {
	if logger == nil {
		logger = logx.NewNoop()
	}
	return &Driver{Recipes: recipes, Builder: builder, Store: st, Logger: logger}
}

// Install resolves targets, builds each in dependency order, and installs
// each into the store sequentially.
func (d *Driver) Install(ctx context.Context, targets []recipe.PackageName) error {
	order, err := resolve.Resolve(targets, d.Recipes)
	if err != nil {
		return err
	}

	for _, name := range order {
		r, _ := d.Recipes.Get(name)
		d.Logger.Info("building package", "package", name)
		outDir, err := d.Builder.Build(ctx, r, nil)
		if err != nil {
			return err
		}
		d.Logger.Info("installing package", "package", name)
		if err := d.Store.InstallPackage(r, outDir); err != nil {
			return err
		}
	}
	return nil
}

// Remove detaches each named package in turn. A reverse-dependency
// refusal on any one package aborts the remaining removals.
func (d *Driver) Remove(names []recipe.PackageName) error {
	for _, name := range names {
		d.Logger.Info("removing package", "package", name)
		if err := d.Store.RemovePackage(name); err != nil {
			return err
		}
	}
	return nil
}

// Upgrade rebuilds every installed package whose recipe version is
// strictly greater than its installed version.
func (d *Driver) Upgrade(ctx context.Context) error {
	installed, err := d.Store.ListInstalled()
	if err != nil {
		return err
	}

	var targets []recipe.PackageName
	for _, ip := range installed {
		r, ok := d.Recipes.Get(ip.Name)
		if !ok {
			continue
		}
		recipeVersion, err := r.Version()
		if err != nil {
			return err
		}
		installedVersion, err := recipe.ParseVersion(ip.Version)
		if err != nil {
			return err
		}
		if recipeVersion.GreaterThan(installedVersion) {
			targets = append(targets, ip.Name)
		}
	}

	if len(targets) == 0 {
		d.Logger.Info("nothing to upgrade")
		return nil
	}
	return d.Install(ctx, targets)
}

// FormatError renders err as the single user-visible line the driver
// prints on failure.
func FormatError(err error) string {
	return fmt.Sprintf("raven: %v", err)
}
