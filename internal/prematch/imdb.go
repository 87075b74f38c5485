package prematch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"upgrader/internal/httputil"
)

const imdbSuggestBaseURL = "https://v2.sg.media-imdb.com/suggestion"

// IMDbSuggest resolves titles through IMDb's public type-ahead endpoint.
// It needs no API key.
type IMDbSuggest struct {
	opts options
}

var _ Resolver = (*IMDbSuggest)(nil)

type imdbSuggestResponse struct {
	D []imdbSuggestion `json:"d"`
}

type imdbSuggestion struct {
	ID    string      `json:"id"`
	Label string      `json:"l"`
	Kind  string      `json:"q"`
	Year  json.Number `json:"y"`
	Rank  float64     `json:"rank"`
}

// NewIMDbSuggest creates an IMDb suggestion resolver.
func NewIMDbSuggest(opts ...Option) *IMDbSuggest {
	return &IMDbSuggest{opts: newOptions(imdbSuggestBaseURL, "imdb-suggest", opts)}
}

// Name returns "imdb-suggest".
func (s *IMDbSuggest) Name() string { return "imdb-suggest" }

// Resolve queries suggestions for want and picks the best feature film.
// A lower IMDb rank means more popular, so popularity is 1/rank.
func (s *IMDbSuggest) Resolve(ctx context.Context, want string, year int) (Match, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		return Match{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var resp imdbSuggestResponse
	if err := httputil.GetJSON(ctx, s.opts.client, s.suggestURL(want), nil, &resp); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return Match{}, fmt.Errorf("%w: imdb suggest status %d", ErrAPIError, se.Code)
		}
		return Match{}, fmt.Errorf("imdb suggest: %w", err)
	}

	var features, all []Candidate
	for _, d := range resp.D {
		if !strings.HasPrefix(d.ID, "tt") {
			continue
		}
		c := Candidate{
			Title:     d.Label,
			IMDbID:    d.ID,
			ServiceID: d.ID,
		}
		if y, err := strconv.Atoi(d.Year.String()); err == nil {
			c.Year = y
		}
		if d.Rank > 0 {
			c.Popularity = 1 / d.Rank
		}
		all = append(all, c)
		switch strings.ToLower(d.Kind) {
		case "feature", "movie":
			features = append(features, c)
		}
	}

	pool := features
	if len(pool) == 0 {
		pool = all
	}
	c, ok := Pick(pool, want, year)
	if !ok {
		return Match{}, ErrNotFound
	}
	return toMatch(c, want, year), nil
}

// suggestURL builds <base>/<first letter or _>/<escaped title>.json.
func (s *IMDbSuggest) suggestURL(want string) string {
	first := "_"
	if r := []rune(strings.ToLower(want))[0]; r >= 'a' && r <= 'z' {
		first = string(r)
	}
	return s.opts.baseURL + "/" + first + "/" + url.PathEscape(want) + ".json"
}
