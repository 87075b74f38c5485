package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"upgrader/internal/jellyfin"
)

var (
	flagJFOut       string
	flagJFMaxHeight int
	flagJFMinRating float64
	flagJFPageSize  int
)

var jellyfinCmd = &cobra.Command{
	Use:   "jellyfin",
	Short: "List low-resolution, well-reviewed movies from Jellyfin as CSV",
	Long: `Query a Jellyfin server (JELLYFIN_BASE_URL / JELLYFIN_API_KEY) for movies
whose best video stream is at or below --max-height and whose critic rating
meets --min-rating. Ratings of 10 or below are read on a 10-point scale.`,
	Args: cobra.NoArgs,
	RunE: jellyfinRun,
}

func init() {
	f := jellyfinCmd.Flags()
	f.StringVarP(&flagJFOut, "out", "o", "", "Output CSV (default: stdout)")
	f.IntVar(&flagJFMaxHeight, "max-height", 0, "Maximum video height to include (default 719)")
	f.Float64Var(&flagJFMinRating, "min-rating", 0, "Minimum critic rating (6 means 60%, default 6)")
	f.IntVar(&flagJFPageSize, "page-size", 0, "Items per API page (default 200)")
}

func jellyfinRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	jf := cfg.Jellyfin
	if flags.Changed("max-height") {
		jf.MaxHeight = flagJFMaxHeight
	}
	if flags.Changed("min-rating") {
		jf.MinRating = flagJFMinRating
	}
	if flags.Changed("page-size") {
		jf.PageSize = flagJFPageSize
	}
	if jf.APIKey == "" {
		return fmt.Errorf("set JELLYFIN_API_KEY or [jellyfin] api_key in the config file")
	}

	client, err := jellyfin.New(jf.BaseURL, jf.APIKey, Version, jellyfin.WithLogger(logger))
	if err != nil {
		return err
	}

	movies, err := client.LowResMovies(cmd.Context(), jellyfin.Filter{
		MaxHeight: jf.MaxHeight,
		MinRating: jf.MinRating,
		PageSize:  jf.PageSize,
	})
	if err != nil {
		return err
	}

	if flagJFOut == "" {
		return jellyfin.WriteCSV(cmd.OutOrStdout(), movies)
	}

	if err := os.MkdirAll(filepath.Dir(flagJFOut), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.Create(flagJFOut)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := jellyfin.WriteCSV(f, movies); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", flagJFOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d movies to %s\n", len(movies), flagJFOut)
	return nil
}
