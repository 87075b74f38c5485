package prematch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"upgrader/internal/httputil"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDB resolves titles through The Movie Database search API, then reads
// the IMDb ID from the movie detail record.
type TMDB struct {
	apiKey string
	opts   options
}

var _ Resolver = (*TMDB)(nil)

type tmdbSearchResponse struct {
	Results []struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		OriginalTitle string  `json:"original_title"`
		ReleaseDate   string  `json:"release_date"`
		Popularity    float64 `json:"popularity"`
	} `json:"results"`
}

type tmdbMovie struct {
	IMDbID string `json:"imdb_id"`
}

// NewTMDB creates a TMDB resolver.
func NewTMDB(apiKey string, opts ...Option) *TMDB {
	return &TMDB{
		apiKey: strings.TrimSpace(apiKey),
		opts:   newOptions(tmdbBaseURL, "tmdb", opts),
	}
}

// Name returns "tmdb".
func (t *TMDB) Name() string { return "tmdb" }

// Resolve searches for want/year. The detail lookup for the IMDb ID is best
// effort: when it fails the refined title and year are still returned.
func (t *TMDB) Resolve(ctx context.Context, want string, year int) (Match, error) {
	if t.apiKey == "" {
		return Match{}, ErrAPIKeyMissing
	}
	if strings.TrimSpace(want) == "" {
		return Match{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("api_key", t.apiKey)
	params.Set("query", want)
	params.Set("include_adult", "false")
	params.Set("language", "en-US")
	params.Set("page", "1")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var resp tmdbSearchResponse
	if err := httputil.GetJSON(ctx, t.opts.client, httputil.WithQuery(t.opts.baseURL+"/search/movie", params), nil, &resp); err != nil {
		return Match{}, fmt.Errorf("tmdb search: %w", err)
	}

	cands := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		name := strings.TrimSpace(r.Title)
		if name == "" {
			name = strings.TrimSpace(r.OriginalTitle)
		}
		c := Candidate{
			Title:      name,
			Year:       parseYear(r.ReleaseDate),
			Popularity: r.Popularity,
		}
		if r.ID > 0 {
			c.ServiceID = strconv.Itoa(r.ID)
		}
		cands = append(cands, c)
	}

	c, ok := Pick(cands, want, year)
	if !ok {
		return Match{}, ErrNotFound
	}

	if c.ServiceID != "" {
		imdbID, err := t.imdbID(ctx, c.ServiceID)
		if err != nil {
			t.opts.logger.Debug().Err(err).Str("tmdb_id", c.ServiceID).Msg("IMDb ID lookup failed")
		}
		c.IMDbID = imdbID
	}

	return toMatch(c, want, year), nil
}

func (t *TMDB) imdbID(ctx context.Context, id string) (string, error) {
	params := url.Values{}
	params.Set("api_key", t.apiKey)
	params.Set("language", "en-US")

	var movie tmdbMovie
	u := httputil.WithQuery(httputil.BuildURL(t.opts.baseURL, "movie", id), params)
	if err := httputil.GetJSON(ctx, t.opts.client, u, nil, &movie); err != nil {
		return "", fmt.Errorf("tmdb movie %s: %w", id, err)
	}
	return strings.TrimSpace(movie.IMDbID), nil
}
