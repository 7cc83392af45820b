// Package config manages raven's persistent config.toml: the recipe
// repository URL, read on demand and created with defaults on first run.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/lear94/raven/internal/rverr"
)

// DefaultRepoURL is written to a freshly created config.toml.
const DefaultRepoURL = "https://github.com/raven-pm/recipes.git"

// Config is the persisted settings document at <root>/config.toml.
type Config struct {
	RepoURL string `toml:"repo_url"`
}

// Load reads config.toml at path, creating it with defaults if absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := &Config{RepoURL: DefaultRepoURL}
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, rverr.NewIOError("read config", err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, &rverr.ParseError{Source: path, Err: err}
	}
	if cfg.RepoURL == "" {
		cfg.RepoURL = DefaultRepoURL
	}
	return &cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rverr.NewIOError("create config dir", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return rverr.NewIOError("create config file", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return rverr.NewIOError("encode config", err)
	}
	return nil
}

// SetRepoURL updates config.toml's repo_url field at path.
func SetRepoURL(path, url string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.RepoURL = url
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
