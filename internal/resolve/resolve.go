// Package resolve linearizes a dependency DAG into a build order: a
// depth-first post-order traversal with semantic-version checking and
// cycle detection, using a gray/black visited-set walk.
package resolve

import (
	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rverr"
)

// visitState tracks a node's place in the depth-first walk.
type visitState int

const (
	unvisited visitState = iota
	onStack              // gray: an ancestor in the current recursion
	done                  // black: fully processed, safe to skip
)

// Resolve returns a total order over the transitive closure of targets in
// which every package appears after all its dependencies, given set.
// Targets are visited in the order supplied; each package's dependencies
// are visited in the order listed in its recipe.
func Resolve(targets []recipe.PackageName, set recipe.RecipeSet) ([]recipe.PackageName, error) {
	r := &resolver{
		set:   set,
		state: make(map[recipe.PackageName]visitState),
		order: make([]recipe.PackageName, 0, len(set)),
	}
	for _, t := range targets {
		if err := r.visit(t); err != nil {
			return nil, err
		}
	}
	return r.order, nil
}

type resolver struct {
	set   recipe.RecipeSet
	state map[recipe.PackageName]visitState
	order []recipe.PackageName
}

func (r *resolver) visit(n recipe.PackageName) error {
	switch r.state[n] {
	case onStack:
		return rverr.NewDependencyError("circular dependency involving %s", n)
	case done:
		return nil
	}

	r.state[n] = onStack

	rec, ok := r.set[n]
	if !ok {
		return rverr.NewDependencyError("package not found: %s", n)
	}

	deps, err := rec.ParseDependencies()
	if err != nil {
		return err
	}

	for _, dep := range deps {
		candidate, ok := r.set[dep.Name]
		if !ok {
			return rverr.NewDependencyError("missing dependency: %s", dep.Name)
		}
		candidateVersion, err := candidate.Version()
		if err != nil {
			return err
		}
		if !dep.Req.Matches(candidateVersion) {
			return rverr.NewDependencyError("version mismatch for %s: required %s, found %s",
				dep.Name, dep.Req.String(), candidateVersion.String())
		}
		if err := r.visit(dep.Name); err != nil {
			return err
		}
	}

	r.state[n] = done
	r.order = append(r.order, n)
	return nil
}
