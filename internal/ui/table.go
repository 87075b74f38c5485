package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"upgrader/internal/match"
	"upgrader/internal/media"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

var (
	movieHeaders   = []string{"Title", "Year", "Rating", "YTS ID", "IMDb", "URL"}
	movieAligns    = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}
	summaryHeaders = []string{"Title", "Year", "Rating", "Runtime", "YTS ID", "IMDb", "URL"}
	summaryAligns  = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft}
	torrentHeaders = []string{"Quality", "Type", "Size", "Seeds", "Peers", "Magnet"}
	torrentAligns  = []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// MoviesTable renders search candidates, one row per movie.
func MoviesTable(movies []media.Movie) string {
	if len(movies) == 0 {
		return ""
	}
	return renderTable(movieHeaders, movieRows(movies), movieAligns)
}

// MovieDetail renders a movie summary followed by its torrents with magnet
// links.
func MovieDetail(m media.Movie) string {
	parts := []string{renderTable(summaryHeaders, [][]string{summaryRow(m)}, summaryAligns)}
	if len(m.Torrents) > 0 {
		parts = append(parts, renderTable(torrentHeaders, torrentRows(m), torrentAligns))
	}
	return strings.Join(parts, "\n")
}

func movieRows(movies []media.Movie) [][]string {
	rows := make([][]string, 0, len(movies))
	for _, m := range movies {
		rows = append(rows, []string{
			m.Title,
			optional(m.Year),
			formatRating(m.Rating),
			strconv.Itoa(m.ID),
			m.IMDbCode,
			m.URL,
		})
	}
	return rows
}

func summaryRow(m media.Movie) []string {
	runtime := ""
	if m.Runtime > 0 {
		runtime = fmt.Sprintf("%d min", m.Runtime)
	}
	id := ""
	if m.ID > 0 {
		id = strconv.Itoa(m.ID)
	}
	return []string{m.Title, optional(m.Year), formatRating(m.Rating), runtime, id, m.IMDbCode, m.URL}
}

func torrentRows(m media.Movie) [][]string {
	rows := make([][]string, 0, len(m.Torrents))
	for _, t := range m.Torrents {
		rows = append(rows, []string{
			t.Quality,
			t.Type,
			t.Size,
			optional(t.Seeds),
			optional(t.Peers),
			match.Magnet(m.Title, t),
		})
	}
	return rows
}

func optional(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatRating(r float64) string {
	if r <= 0 {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}
