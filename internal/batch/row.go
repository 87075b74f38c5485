package batch

import (
	"math"
	"strconv"
	"strings"

	"upgrader/internal/httputil"
	"upgrader/internal/media"
)

// Fields are the inputs the pipeline reads from a row.
type Fields struct {
	Title  string
	Year   int
	IMDbID string
	Height int     // 0 when unknown
	Rank   float64 // current quality rank
	Source string  // path used for logging
}

// ParseRow extracts the pipeline inputs from row. The title comes from the
// first non-empty of title, name, title_guess and folder_path, keeping only
// the last path segment. The current rank comes from max_height when known,
// otherwise from a quality token in path, folder_path or name.
func ParseRow(row Row) Fields {
	f := Fields{
		Year:   parseInt(row["year"]),
		Height: parseInt(row["max_height"]),
		Source: firstNonEmpty(row["path"], row["folder_path"], row["name"]),
	}

	name := firstNonEmpty(row["title"], row["name"], row["title_guess"], row["folder_path"])
	name = strings.TrimRight(strings.ReplaceAll(name, "\\", "/"), "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	f.Title = strings.TrimSpace(name)

	if id := strings.TrimSpace(row["imdb_id"]); httputil.ValidateIMDbID(id) == nil {
		f.IMDbID = strings.ToLower(id)
	}

	if f.Height > 0 {
		f.Rank = media.RankFromHeight(f.Height)
	} else {
		f.Rank = media.DetectRank(firstNonEmpty(row["path"], row["folder_path"], row["name"]))
	}
	return f
}

// HasEnrichment reports whether row carries results of an earlier run.
func HasEnrichment(row Row) bool {
	return row[ColTitle] != "" || row[ColNext] != "" || row[ColMagnet] != ""
}

// Apply writes e into the enrichment columns of row.
func Apply(row Row, e media.Enrichment) {
	row[ColTitle] = e.Title
	row[ColYear] = ""
	if e.Year > 0 {
		row[ColYear] = strconv.Itoa(e.Year)
	}
	row[ColURL] = e.URL
	row[ColAvailable] = strings.Join(e.Available, "|")
	row[ColNext] = e.NextQuality
	row[ColMagnet] = e.Magnet
}

// parseInt accepts "1080" as well as spreadsheet-style "1080.0".
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
