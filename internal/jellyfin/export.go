package jellyfin

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Header is the column layout of the inventory CSV.
var Header = []string{"name", "year", "critic_rating", "critic_summary", "max_height", "jellyfin_id", "imdb_id", "tmdb_id"}

// WriteCSV writes movies as an inventory CSV.
func WriteCSV(w io.Writer, movies []Movie) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range movies {
		rec := []string{
			m.Name,
			optionalInt(m.Year),
			strconv.FormatFloat(m.CriticRating, 'f', 1, 64),
			m.CriticSummary,
			optionalInt(m.MaxHeight),
			m.ID,
			m.IMDbID,
			m.TMDbID,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
