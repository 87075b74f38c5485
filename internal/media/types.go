// Package media defines shared types for the upgrader application.
package media

import (
	"sort"
	"strings"
)

// Query is one logical search against the torrent index. Year 0 means the
// year is unknown. When IMDbID is set the index is queried by ID and Text is
// only used for tie-breaking.
type Query struct {
	Text   string
	Year   int
	IMDbID string
}

// NewTextQuery builds a free-text query.
func NewTextQuery(title string, year int) Query {
	return Query{Text: strings.TrimSpace(title), Year: year}
}

// NewIDQuery builds a query by external (IMDb) identifier.
func NewIDQuery(imdbID string) Query {
	return Query{IMDbID: strings.TrimSpace(imdbID)}
}

// ByID reports whether the query targets an external identifier.
func (q Query) ByID() bool {
	return q.IMDbID != ""
}

// Movie is a candidate movie returned by the torrent index.
type Movie struct {
	ID       int
	Title    string
	Year     int
	URL      string
	Rating   float64
	IMDbCode string
	Runtime  int
	Torrents []Torrent
}

// Torrent is one downloadable release of a movie.
type Torrent struct {
	Quality string // e.g., "1080p"
	Type    string // e.g., "bluray", "web"
	Size    string // human size label, e.g., "1.9 GB"
	Seeds   int
	Peers   int
	Hash    string // BitTorrent v1 info-hash (hex)
}

// Label returns the "quality.type" label used in enrichment output.
func (t Torrent) Label() string {
	return t.Quality + "." + t.Type
}

// AvailableQualities returns the sorted, deduplicated quality.type labels
// of all torrents of m.
func (m Movie) AvailableQualities() []string {
	seen := make(map[string]struct{}, len(m.Torrents))
	var labels []string
	for _, t := range m.Torrents {
		l := t.Label()
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Enrichment is the per-row result of the search-and-match pipeline.
// The zero value means "no match" (or no upgrade).
type Enrichment struct {
	Title       string
	Year        int
	URL         string
	Available   []string
	NextQuality string
	Magnet      string
}

// IsZero reports whether e carries no match.
func (e Enrichment) IsZero() bool {
	return e.Title == "" && e.URL == "" && e.NextQuality == "" && e.Magnet == "" && len(e.Available) == 0
}
