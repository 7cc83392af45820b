// Package rootlayout resolves raven's three filesystem roots — persistent
// root, build workspace, and staging — honoring environment overrides with
// documented defaults.
package rootlayout

import (
	"os"
	"path/filepath"
)

const (
	DefaultRoot    = "/var/lib/raven"
	DefaultWork    = "/tmp/raven_build"
	DefaultStaging = "/tmp/raven_stage"

	envRoot    = "RAVEN_ROOT"
	envWork    = "RAVEN_WORK"
	envStaging = "RAVEN_STAGE"
)

// Layout holds the resolved paths for one invocation.
type Layout struct {
	Root    string
	Work    string
	Staging string
}

// Resolve reads RAVEN_ROOT, RAVEN_WORK, and RAVEN_STAGE, falling back to
// their spec-defined defaults.
func Resolve() Layout {
	return Layout{
		Root:    envOr(envRoot, DefaultRoot),
		Work:    envOr(envWork, DefaultWork),
		Staging: envOr(envStaging, DefaultStaging),
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// MetadataDBPath is <root>/metadata.db.
func (l Layout) MetadataDBPath() string { return filepath.Join(l.Root, "metadata.db") }

// ConfigPath is <root>/config.toml.
func (l Layout) ConfigPath() string { return filepath.Join(l.Root, "config.toml") }

// RecipesDir is <root>/recipes.
func (l Layout) RecipesDir() string { return filepath.Join(l.Root, "recipes") }

// EnsureDirs creates Root, Work, and Staging if missing.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.Root, l.Work, l.Staging} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
