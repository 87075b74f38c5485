// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"upgrader/internal/config"
	"upgrader/internal/logging"
	"upgrader/internal/mirror"
	"upgrader/internal/provider"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDebug     bool
	flagLogFormat string
	flagMirrors   []string
	flagRetries   int
	flagTimeout   time.Duration
	flagSlowAfter time.Duration
	flagLimit     int
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "upgrader",
	Short: "Find better-quality releases for the movies you already have",
	Long: `upgrader finds low-resolution movies in a Jellyfin library, looks them up
on the YTS index through a list of mirrors, and records the best available
upgrade (quality and magnet link) for each one. It never downloads anything.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console | json")
	pf.StringSliceVar(&flagMirrors, "mirror", nil, "YTS site or API root to try first (repeatable)")
	pf.IntVar(&flagRetries, "retries", 0, "Retries per mirror on failure or slow response (default 3)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout (default 12s)")
	pf.DurationVar(&flagSlowAfter, "slow-after", 0, "Treat responses slower than this as slow (default 9s)")
	pf.IntVar(&flagLimit, "limit", 0, "Maximum results per search (default 10)")

	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(jellyfinCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration, then builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	flags := cmd.Flags()
	if flagDebug {
		cfg.Debug = true
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if len(flagMirrors) > 0 {
		cfg.Search.Mirrors = append(append([]string{}, flagMirrors...), cfg.Search.Mirrors...)
	}
	if flags.Changed("retries") {
		cfg.Search.Retries = flagRetries
	}
	if flags.Changed("timeout") {
		cfg.Search.Timeout = flagTimeout
	}
	if flags.Changed("slow-after") {
		cfg.Search.SlowAfter = flagSlowAfter
	}
	if flags.Changed("limit") {
		cfg.Search.Limit = flagLimit
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = logging.New(logging.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	return nil
}

// newProvider builds the YTS client over configured and default mirrors.
func newProvider() *provider.YTS {
	registry := mirror.New(cfg.Search.Mirrors, mirror.Defaults)
	logger.Debug().Strs("mirrors", registry.Endpoints()).Msg("Mirror order")
	return provider.NewYTS(registry, cfg.Search, provider.WithLogger(logger))
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version",
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "upgrader", Version)
	},
}
