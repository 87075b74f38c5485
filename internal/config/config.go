// Package config handles TOML-based configuration loading and validation.
// Values are layered: defaults < config file < environment (.env honoured)
// < CLI flags (applied by cmd).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Debug     bool     `toml:"debug"`
	LogFormat string   `toml:"log_format"`
	Search    Search   `toml:"search"`
	Match     Match    `toml:"match"`
	PreMatch  PreMatch `toml:"prematch"`
	Batch     Batch    `toml:"batch"`
	Jellyfin  Jellyfin `toml:"jellyfin"`
}

// Search configures the mirror-failover search client.
type Search struct {
	Mirrors   []string      `toml:"mirrors"`
	Timeout   time.Duration `toml:"timeout"`
	SlowAfter time.Duration `toml:"slow_after"`
	Retries   int           `toml:"retries"`
	Backoff   time.Duration `toml:"backoff"`
	Limit     int           `toml:"limit"`
}

// Match configures upgrade selection.
type Match struct {
	UHDRating     float64  `toml:"uhd_rating"`
	LadderHigh    []string `toml:"ladder_high"`
	LadderDefault []string `toml:"ladder_default"`
}

// PreMatch configures the identity-service refinement step.
type PreMatch struct {
	Mode    string        `toml:"mode"`
	TMDBKey string        `toml:"tmdb_key"`
	OMDbKey string        `toml:"omdb_key"`
	Timeout time.Duration `toml:"timeout"`
}

// Batch configures CSV enrichment runs.
type Batch struct {
	Concurrency int `toml:"concurrency"`
	MaxHeight   int `toml:"max_height"`
}

// Jellyfin configures the inventory query.
type Jellyfin struct {
	BaseURL   string  `toml:"base_url"`
	APIKey    string  `toml:"api_key"`
	MaxHeight int     `toml:"max_height"`
	MinRating float64 `toml:"min_rating"`
	PageSize  int     `toml:"page_size"`
}

// PreMatch modes.
const (
	ModeNone        = "none"
	ModeTMDB        = "tmdb"
	ModeOMDb        = "omdb"
	ModeIMDbSuggest = "imdb-suggest"
	ModeAuto        = "auto"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogFormat: "console",
		Search: Search{
			Timeout:   12 * time.Second,
			SlowAfter: 9 * time.Second,
			Retries:   3,
			Backoff:   750 * time.Millisecond,
			Limit:     10,
		},
		Match: Match{
			UHDRating:     7.0,
			LadderHigh:    []string{"2160p", "1080p", "720p"},
			LadderDefault: []string{"1080p", "720p"},
		},
		PreMatch: PreMatch{
			Mode:    ModeTMDB,
			Timeout: 8 * time.Second,
		},
		Batch: Batch{
			Concurrency: 1,
		},
		Jellyfin: Jellyfin{
			BaseURL:   "http://localhost:8096",
			MaxHeight: 719,
			MinRating: 6.0,
			PageSize:  200,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "upgrader"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "upgrader"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, merges it with defaults and applies
// environment overrides. A missing config file is not an error.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("YTS_API_BASE")); v != "" {
		var env []string
		for _, raw := range strings.Split(v, ",") {
			if raw = strings.TrimSpace(raw); raw != "" {
				env = append(env, raw)
			}
		}
		c.Search.Mirrors = append(env, c.Search.Mirrors...)
	}
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		c.PreMatch.TMDBKey = v
	}
	if v := os.Getenv("OMDB_API_KEY"); v != "" {
		c.PreMatch.OMDbKey = v
	}
	if v := os.Getenv("JELLYFIN_BASE_URL"); v != "" {
		c.Jellyfin.BaseURL = v
	}
	if v := os.Getenv("JELLYFIN_API_KEY"); v != "" {
		c.Jellyfin.APIKey = v
	}
	switch strings.ToLower(os.Getenv("UPGRADER_DEBUG")) {
	case "1", "true", "yes", "on":
		c.Debug = true
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validModes := map[string]bool{
		ModeNone: true, ModeTMDB: true, ModeOMDb: true, ModeIMDbSuggest: true, ModeAuto: true,
	}
	if !validModes[strings.ToLower(c.PreMatch.Mode)] {
		return fmt.Errorf("unsupported prematch mode %q (valid: none, tmdb, omdb, imdb-suggest, auto)", c.PreMatch.Mode)
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("unsupported log format %q (valid: console, json)", c.LogFormat)
	}

	if c.Search.Retries < 0 {
		return fmt.Errorf("search retries cannot be negative")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	if c.Search.SlowAfter <= 0 {
		return fmt.Errorf("search slow_after must be positive")
	}
	if c.Search.Backoff < 0 {
		return fmt.Errorf("search backoff cannot be negative")
	}
	if c.Search.Limit <= 0 || c.Search.Limit > 50 {
		return fmt.Errorf("search limit %d out of range (1-50)", c.Search.Limit)
	}

	if len(c.Match.LadderHigh) == 0 || len(c.Match.LadderDefault) == 0 {
		return fmt.Errorf("quality ladders cannot be empty")
	}

	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}

	return nil
}
