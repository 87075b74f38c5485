package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"upgrader/internal/batch"
	"upgrader/internal/match"
	"upgrader/internal/prematch"
)

var (
	flagEnrichOut         string
	flagEnrichRefresh     bool
	flagEnrichConcurrency int
	flagEnrichMaxHeight   int
	flagPreMatch          string
	flagTMDBKey           string
	flagOMDbKey           string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <csv>",
	Short: "Add YTS matches, next quality and magnet links to a CSV",
	Long: `Enrich reads a CSV of movies (for example the output of "upgrader jellyfin"),
looks each row up on YTS and appends the yts_* and magnet columns. Rows are
written in input order and synced one at a time; on Ctrl-C the rows not yet
processed are kept as they were. Without --out the file is rewritten in place.

Rows stream into <out>.partial, which replaces <out> when the run ends. If the
process is killed or crashes, the input is left untouched and rerunning the
same command resumes after the last row saved in <out>.partial.`,
	Args: cobra.ExactArgs(1),
	RunE: enrichRun,
}

func init() {
	f := enrichCmd.Flags()
	f.StringVarP(&flagEnrichOut, "out", "o", "", "Output CSV (default: rewrite the input)")
	f.BoolVar(&flagEnrichRefresh, "refresh", false, "Re-run lookups for rows that already have results")
	f.IntVarP(&flagEnrichConcurrency, "concurrency", "j", 0, "Rows searched in parallel (default 1)")
	f.IntVar(&flagEnrichMaxHeight, "max-height", 0, "Skip rows whose current height is above this (0 disables)")
	f.StringVar(&flagPreMatch, "prematch", "", "Title pre-match: none | tmdb | omdb | imdb-suggest | auto")
	f.StringVar(&flagTMDBKey, "tmdb-key", "", "TMDb API key (default $TMDB_API_KEY)")
	f.StringVar(&flagOMDbKey, "omdb-key", "", "OMDb API key (default $OMDB_API_KEY)")
}

func enrichRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Batch.Concurrency = flagEnrichConcurrency
	}
	if flags.Changed("max-height") {
		cfg.Batch.MaxHeight = flagEnrichMaxHeight
	}
	if flagPreMatch != "" {
		cfg.PreMatch.Mode = flagPreMatch
	}
	if flagTMDBKey != "" {
		cfg.PreMatch.TMDBKey = flagTMDBKey
	}
	if flagOMDbKey != "" {
		cfg.PreMatch.OMDbKey = flagOMDbKey
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	chain, err := prematch.FromConfig(cfg.PreMatch, logger)
	if err != nil {
		return err
	}
	logger.Debug().Strs("resolvers", chain.Names()).Msg("Pre-match chain")

	driver := batch.NewDriver(
		newProvider(),
		chain,
		match.PolicyFromConfig(cfg.Match),
		batch.Options{
			Refresh:     flagEnrichRefresh,
			Concurrency: cfg.Batch.Concurrency,
			MaxHeight:   cfg.Batch.MaxHeight,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := args[0]
	out := flagEnrichOut
	if out == "" {
		out = in
	}

	stats, err := batch.EnrichFile(ctx, driver, in, out)
	logger.Info().
		Int("rows", stats.Rows).
		Int("skipped", stats.Skipped).
		Int("matched", stats.Matched).
		Int("upgrades", stats.Upgrades).
		Int("failed", stats.Failed).
		Str("out", out).
		Msg("Enrichment finished")

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted; processed rows were saved to %s", out)
	}
	return err
}
