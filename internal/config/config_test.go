package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config and .env lookups at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{"YTS_API_BASE", "TMDB_API_KEY", "OMDB_API_KEY", "JELLYFIN_BASE_URL", "JELLYFIN_API_KEY", "UPGRADER_DEBUG"} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 12*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 9*time.Second, cfg.Search.SlowAfter)
	assert.Equal(t, 3, cfg.Search.Retries)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.Backoff)
	assert.Equal(t, 7.0, cfg.Match.UHDRating)
	assert.Equal(t, []string{"2160p", "1080p", "720p"}, cfg.Match.LadderHigh)
	assert.Equal(t, ModeTMDB, cfg.PreMatch.Mode)
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.Zero(t, cfg.Batch.MaxHeight, "batch height gate is opt-in")
	assert.Equal(t, 719, cfg.Jellyfin.MaxHeight)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"invalid mode", func(c *Config) { c.PreMatch.Mode = "google" }, true},
		{"auto mode", func(c *Config) { c.PreMatch.Mode = "auto" }, false},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"negative retries", func(c *Config) { c.Search.Retries = -1 }, true},
		{"zero retries", func(c *Config) { c.Search.Retries = 0 }, false},
		{"zero timeout", func(c *Config) { c.Search.Timeout = 0 }, true},
		{"limit too large", func(c *Config) { c.Search.Limit = 500 }, true},
		{"empty ladder", func(c *Config) { c.Match.LadderDefault = nil }, true},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := isolate(t)

	content := `
debug = true

[search]
mirrors = ["https://mirror.example"]
timeout = "5s"
retries = 1

[prematch]
mode = "auto"
tmdb_key = "file-key"

[batch]
concurrency = 4
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "upgrader"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upgrader", "config.toml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://mirror.example"}, cfg.Search.Mirrors)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 1, cfg.Search.Retries)
	assert.Equal(t, 9*time.Second, cfg.Search.SlowAfter, "unset values keep defaults")
	assert.Equal(t, "auto", cfg.PreMatch.Mode)
	assert.Equal(t, "file-key", cfg.PreMatch.TMDBKey)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err, "missing file should not error")
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := isolate(t)

	content := `
[search]
mirrors = ["https://from-file.example"]
[prematch]
tmdb_key = "file-key"
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "upgrader"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upgrader", "config.toml"), []byte(content), 0o644))

	t.Setenv("YTS_API_BASE", "https://a.example, https://b.example/api/v2 ,")
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("UPGRADER_DEBUG", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example/api/v2", "https://from-file.example"}, cfg.Search.Mirrors)
	assert.Equal(t, "env-key", cfg.PreMatch.TMDBKey)
	assert.True(t, cfg.Debug)
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "upgrader"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upgrader", "config.toml"), []byte("[search\n"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
