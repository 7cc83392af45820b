package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lear94/raven/internal/rverr"
)

// Load walks dir recursively (any nesting) and parses every file with a
// ".toml" extension into a RecipeSet. Each recipe's version is validated
// as a strict semantic version at load time.
func Load(dir string) (RecipeSet, error) {
	set := make(RecipeSet)
	return loadWalk(dir, set)
}

func loadWalk(dir string, set RecipeSet) (RecipeSet, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return set, nil
	}
	if err != nil {
		return nil, rverr.NewIOError("read recipe dir", err)
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if _, err := loadWalk(full, set); err != nil {
				return nil, err
			}
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ".toml") {
			continue
		}
		r, err := LoadFile(full)
		if err != nil {
			return nil, err
		}
		set[r.Name] = r
	}
	return set, nil
}

// LoadFile parses a single recipe file and validates it.
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rverr.NewIOError("read recipe file "+path, err)
	}

	var r Recipe
	if _, err := toml.Decode(string(data), &r); err != nil {
		return nil, &rverr.ParseError{Source: path, Err: err}
	}

	if err := validateName(r.Name); err != nil {
		return nil, &rverr.ParseError{Source: path, Err: err}
	}
	if _, err := r.Version(); err != nil {
		return nil, err
	}
	if !r.SHA256Sum.Valid() {
		return nil, &rverr.ParseError{Source: path, Err: fmt.Errorf("sha256_sum must be 64 lowercase hex characters")}
	}
	if r.SourceURL == "" {
		return nil, &rverr.ParseError{Source: path, Err: fmt.Errorf("source_url must not be empty")}
	}
	// Syntactic validation of dependency requirement grammar; resolve-time
	// re-parses these against candidate versions.
	if _, err := r.ParseDependencies(); err != nil {
		return nil, &rverr.ParseError{Source: path, Err: err}
	}

	return &r, nil
}
