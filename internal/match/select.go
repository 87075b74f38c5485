// Package match picks the best candidate movie for a noisy title and decides
// which release, if any, is an upgrade over what is already owned.
package match

import (
	"strings"

	"upgrader/internal/media"
	"upgrader/internal/title"
)

// unknownYearDistance is used when either side lacks a year, so rating and
// similarity dominate.
const unknownYearDistance = 9999

// score orders candidates lexicographically; higher is better.
type score [3]float64

func (s score) less(o score) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

// Select returns the best candidate for title/year. An exact case-insensitive
// IMDb ID match wins outright. With a year, same-year candidates are
// preferred and ranked by rating then title similarity. Otherwise every
// candidate is ranked by rating, similarity and year proximity. Ties keep
// the earliest candidate. Select returns nil only when movies is empty.
func Select(movies []media.Movie, want string, year int, imdbID string) *media.Movie {
	if len(movies) == 0 {
		return nil
	}

	if id := strings.TrimSpace(imdbID); id != "" {
		for i := range movies {
			if strings.EqualFold(strings.TrimSpace(movies[i].IMDbCode), id) {
				return &movies[i]
			}
		}
	}

	if year > 0 {
		var sameYear []int
		for i := range movies {
			if movies[i].Year == year {
				sameYear = append(sameYear, i)
			}
		}
		if len(sameYear) > 0 {
			return best(movies, sameYear, func(m media.Movie) score {
				return score{m.Rating, title.Similarity(want, m.Title), 0}
			})
		}
	}

	all := make([]int, len(movies))
	for i := range movies {
		all[i] = i
	}
	return best(movies, all, func(m media.Movie) score {
		s := score{m.Rating, title.Similarity(want, m.Title), 0}
		if year > 0 {
			s[2] = -float64(yearDistance(m.Year, year))
		}
		return s
	})
}

func best(movies []media.Movie, pool []int, scoreFn func(media.Movie) score) *media.Movie {
	bestIdx := pool[0]
	bestScore := scoreFn(movies[bestIdx])
	for _, i := range pool[1:] {
		s := scoreFn(movies[i])
		if bestScore.less(s) {
			bestIdx, bestScore = i, s
		}
	}
	return &movies[bestIdx]
}

func yearDistance(a, b int) int {
	if a <= 0 || b <= 0 {
		return unknownYearDistance
	}
	if a > b {
		return a - b
	}
	return b - a
}
