// Package title canonicalizes free-text movie titles for searching and
// comparison.
package title

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separatorRegex = regexp.MustCompile(`[._]+`)
	yearParenRegex = regexp.MustCompile(`\(\d{4}\)`)
	punctRegex     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// Normalize lowercases s, folds diacritics, turns dots and underscores into
// spaces, drops a "(YYYY)" year token, replaces punctuation with spaces and
// collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = fold(s)
	s = strings.ToLower(s)
	s = separatorRegex.ReplaceAllString(s, " ")
	s = yearParenRegex.ReplaceAllString(s, "")
	s = punctRegex.ReplaceAllString(s, " ")
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// fold decomposes s and strips combining marks ("Amélie" -> "Amelie").
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Similarity returns the longest-matching-blocks ratio of the normalized
// titles, in [0, 1].
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(chars(Normalize(a)), chars(Normalize(b)))
	return m.Ratio()
}

// Overlap returns the share of want's tokens that also appear in got.
func Overlap(want, got string) float64 {
	wt := tokens(Normalize(want))
	gt := tokens(Normalize(got))
	shared := 0
	for t := range wt {
		if _, ok := gt[t]; ok {
			shared++
		}
	}
	return float64(shared) / max(1, float64(len(wt)))
}

// Query builds the free-text search string for a title and optional year.
func Query(t string, year int) string {
	q := Normalize(t)
	if year > 0 {
		q = strings.TrimSpace(q + " " + strconv.Itoa(year))
	}
	return q
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		set[f] = struct{}{}
	}
	return set
}
