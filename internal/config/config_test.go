package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRepoURL, cfg.RepoURL)
	assert.FileExists(t, path)
}

func TestLoad_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`repo_url = "https://example.invalid/recipes.git"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/recipes.git", cfg.RepoURL)
}

func TestSetRepoURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := Load(path)
	require.NoError(t, err)

	cfg, err := SetRepoURL(path, "https://example.invalid/other.git")
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/other.git", cfg.RepoURL)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/other.git", reloaded.RepoURL)
}

func TestLoad_MalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid toml [[["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
