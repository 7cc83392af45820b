// Package recipe implements raven's declarative package description: the
// typed Recipe value, its raw-dependency-string parsing, and the
// in-memory RecipeSet loaded from a recipe repository tree.
package recipe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/lear94/raven/internal/rverr"
)

// PackageName is a canonical package identifier. Equality and hashing are
// case-sensitive.
type PackageName string

// Version is a parsed semantic version, totally ordered.
type Version = semver.Version

// HashSum is a lowercase hex-encoded SHA-256 digest of a raw source
// archive.
type HashSum string

var hashSumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Valid reports whether h is a syntactically valid lowercase-hex SHA-256 sum.
func (h HashSum) Valid() bool { return hashSumPattern.MatchString(string(h)) }

// VersionRequirement is a constraint expression over Version, e.g. ">=1.2",
// "^2.0", or "*".
type VersionRequirement struct {
	raw         string
	constraints *semver.Constraints
}

// AnyVersion is a requirement that matches every version. ParseDependencies
// does not return it: a dependency string with no version constraint gets
// a requirement parsed from "*".
var AnyVersion = VersionRequirement{raw: "*"}

// ParseVersionRequirement parses s under semantic-version requirement
// grammar. An empty string is treated as "*" (any version).
func ParseVersionRequirement(s string) (VersionRequirement, error) {
	if s == "" {
		s = "*"
	}
	c, err := semver.NewConstraint(s)
	if err != nil {
		return VersionRequirement{}, &rverr.VersionError{Value: s, Err: err}
	}
	return VersionRequirement{raw: s, constraints: c}, nil
}

// Matches reports whether v satisfies the requirement.
func (r VersionRequirement) Matches(v *Version) bool {
	if r.constraints == nil {
		return true
	}
	return r.constraints.Check(v)
}

// String returns the original requirement text.
func (r VersionRequirement) String() string {
	if r.raw == "" {
		return "*"
	}
	return r.raw
}

// DependencyRequirement is a (PackageName, VersionRequirement) pair derived
// from one raw dependency string on a Recipe.
type DependencyRequirement struct {
	Name PackageName
	Req  VersionRequirement
}

// ParseVersion parses s as a strict semantic version.
func ParseVersion(s string) (*Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, &rverr.VersionError{Value: s, Err: err}
	}
	return v, nil
}

// Recipe is the immutable declarative description of how to fetch, build,
// and install one package.
type Recipe struct {
	Name            PackageName `toml:"name"`
	VersionString   string      `toml:"version"`
	Description     string      `toml:"description"`
	TargetArch      string      `toml:"target_arch,omitempty"`
	RawDependencies []string    `toml:"dependencies,omitempty"`
	SourceURL       string      `toml:"source_url"`
	SHA256Sum       HashSum     `toml:"sha256_sum"`
	BuildCommands   []string    `toml:"build_commands,omitempty"`
	InstallCommands []string    `toml:"install_commands,omitempty"`
}

// Version parses the recipe's declared version string as a strict semver.
func (r *Recipe) Version() (*Version, error) {
	return ParseVersion(r.VersionString)
}

// splitDependency splits a raw dependency string at the first whitespace
// into (name, requirement-text), defaulting requirement text to "*".
func splitDependency(raw string) (name, req string) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return "", "*"
	case 1:
		return fields[0], "*"
	default:
		// Preserve the rest of the line after the name as the requirement,
		// in case the requirement text itself contains embedded spaces
		// (e.g. "libc >= 2.30").
		idx := strings.IndexAny(raw, " \t")
		return raw[:idx], strings.TrimSpace(raw[idx:])
	}
}

// ParseDependencies parses every raw dependency string on the recipe into a
// DependencyRequirement. A malformed requirement surfaces a DependencyError
// naming the offending package.
func (r *Recipe) ParseDependencies() ([]DependencyRequirement, error) {
	parsed := make([]DependencyRequirement, 0, len(r.RawDependencies))
	for _, raw := range r.RawDependencies {
		name, reqText := splitDependency(raw)
		if name == "" {
			continue
		}
		req, err := ParseVersionRequirement(reqText)
		if err != nil {
			return nil, rverr.NewDependencyError("invalid requirement for %s: %v", name, err)
		}
		parsed = append(parsed, DependencyRequirement{Name: PackageName(name), Req: req})
	}
	return parsed, nil
}

// FirstToken returns the package-name portion of a raw dependency string,
// i.e. the text up to (not including) the first whitespace.
func FirstToken(raw string) string {
	name, _ := splitDependency(raw)
	return name
}

// RecipeSet is an in-memory index of all recipes loaded for one command: a
// mapping from PackageName to Recipe, at most one version per name.
type RecipeSet map[PackageName]*Recipe

// Get looks up a recipe by name.
func (s RecipeSet) Get(name PackageName) (*Recipe, bool) {
	r, ok := s[name]
	return r, ok
}

func validateName(name PackageName) error {
	if name == "" {
		return fmt.Errorf("recipe name must not be empty")
	}
	if strings.ContainsAny(string(name), " \t\n") {
		return fmt.Errorf("recipe name %q must not contain whitespace", name)
	}
	return nil
}
