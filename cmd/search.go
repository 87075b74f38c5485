package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"upgrader/internal/media"
	"upgrader/internal/ui"
)

var (
	flagSearchKey  string
	flagSearchID   string
	flagSearchYear int
)

var searchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Search YTS by title fragment or show one movie by YTS/IMDb id",
	Example: `  upgrader search --key "blade runner"
  upgrader search --id tt1856101`,
	Args: cobra.ArbitraryArgs,
	RunE: searchRun,
}

func init() {
	searchCmd.Flags().StringVarP(&flagSearchKey, "key", "k", "", "Title fragment to search")
	searchCmd.Flags().StringVar(&flagSearchID, "id", "", "YTS movie id or IMDb tt id")
	searchCmd.Flags().IntVarP(&flagSearchYear, "year", "y", 0, "Release year appended to the query")
	searchCmd.MarkFlagsMutuallyExclusive("key", "id")
}

func searchRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	p := newProvider()

	if flagSearchID != "" {
		movie, err := p.Details(ctx, strings.TrimSpace(flagSearchID))
		if err != nil {
			return fmt.Errorf("movie details: %w", err)
		}
		if movie == nil {
			fmt.Fprintf(out, "No movie found for id %s\n", flagSearchID)
			return nil
		}
		fmt.Fprintln(out, ui.MovieDetail(*movie))
		return nil
	}

	key := flagSearchKey
	if key == "" {
		key = strings.Join(args, " ")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("provide a title with --key or an id with --id")
	}

	logger.Debug().Str("query", key).Int("year", flagSearchYear).Msg("Searching")
	movies, err := p.Search(ctx, media.NewTextQuery(key, flagSearchYear))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(movies) == 0 {
		fmt.Fprintf(out, "No matches for '%s'\n", key)
		return nil
	}
	fmt.Fprintln(out, ui.MoviesTable(movies))
	return nil
}
