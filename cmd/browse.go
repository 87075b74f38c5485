package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"upgrader/internal/logging"
	"upgrader/internal/media"
	"upgrader/internal/ui"
)

var flagBrowseYear int

var browseCmd = &cobra.Command{
	Use:   "browse <title>",
	Short: "Browse YTS search results interactively",
	Args:  cobra.MinimumNArgs(1),
	RunE:  browseRun,
}

func init() {
	browseCmd.Flags().IntVarP(&flagBrowseYear, "year", "y", 0, "Release year appended to the query")
}

func browseRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")
	p := newProvider()

	movies, err := p.Search(ctx, media.NewTextQuery(query, flagBrowseYear))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(movies) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results")
		return nil
	}

	// Without a terminal there is nothing to drive the browser; print the table.
	if !logging.IsTerminal(os.Stdin) || !logging.IsTerminal(os.Stdout) {
		logger.Debug().Msg("Not a terminal, printing results")
		fmt.Fprintln(cmd.OutOrStdout(), ui.MoviesTable(movies))
		return nil
	}

	return ui.Browse(ctx, movies, p.Details, os.Stdin, os.Stdout)
}
