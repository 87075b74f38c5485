package prematch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"upgrader/internal/httputil"
)

const omdbBaseURL = "https://www.omdbapi.com"

// OMDb resolves titles through the Open Movie Database: an exact title
// lookup first, then a free-text search.
type OMDb struct {
	apiKey string
	opts   options
}

var _ Resolver = (*OMDb)(nil)

type omdbTitle struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	IMDbID   string `json:"imdbID"`
}

type omdbSearch struct {
	Response string      `json:"Response"`
	Error    string      `json:"Error"`
	Search   []omdbTitle `json:"Search"`
}

// NewOMDb creates an OMDb resolver.
func NewOMDb(apiKey string, opts ...Option) *OMDb {
	return &OMDb{
		apiKey: strings.TrimSpace(apiKey),
		opts:   newOptions(omdbBaseURL, "omdb", opts),
	}
}

// Name returns "omdb".
func (o *OMDb) Name() string { return "omdb" }

// Resolve looks want/year up by exact title, falling back to search.
func (o *OMDb) Resolve(ctx context.Context, want string, year int) (Match, error) {
	if o.apiKey == "" {
		return Match{}, ErrAPIKeyMissing
	}
	if strings.TrimSpace(want) == "" {
		return Match{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.timeout)
	defer cancel()

	m, err := o.lookup(ctx, want, year)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNotFound) {
		o.opts.logger.Debug().Err(err).Str("title", want).Msg("Exact lookup failed, searching")
	}
	return o.search(ctx, want, year)
}

func (o *OMDb) lookup(ctx context.Context, want string, year int) (Match, error) {
	params := o.params()
	params.Set("t", want)
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	var resp omdbTitle
	if err := httputil.GetJSON(ctx, o.opts.client, httputil.WithQuery(o.opts.baseURL+"/", params), nil, &resp); err != nil {
		return Match{}, fmt.Errorf("omdb lookup: %w", err)
	}
	if err := responseError(resp.Response, resp.Error); err != nil {
		return Match{}, err
	}

	return toMatch(Candidate{
		Title:  resp.Title,
		Year:   parseYear(resp.Year),
		IMDbID: resp.IMDbID,
	}, want, year), nil
}

func (o *OMDb) search(ctx context.Context, want string, year int) (Match, error) {
	params := o.params()
	params.Set("s", want)

	var resp omdbSearch
	if err := httputil.GetJSON(ctx, o.opts.client, httputil.WithQuery(o.opts.baseURL+"/", params), nil, &resp); err != nil {
		return Match{}, fmt.Errorf("omdb search: %w", err)
	}
	if err := responseError(resp.Response, resp.Error); err != nil {
		return Match{}, err
	}

	cands := make([]Candidate, 0, len(resp.Search))
	for _, r := range resp.Search {
		cands = append(cands, Candidate{
			Title:     r.Title,
			Year:      parseYear(r.Year),
			IMDbID:    r.IMDbID,
			ServiceID: r.IMDbID,
		})
	}
	c, ok := Pick(cands, want, year)
	if !ok {
		return Match{}, ErrNotFound
	}
	return toMatch(c, want, year), nil
}

func (o *OMDb) params() url.Values {
	params := url.Values{}
	params.Set("apikey", o.apiKey)
	params.Set("type", "movie")
	return params
}

// responseError maps OMDb's Response/Error pair to a sentinel error.
func responseError(response, msg string) error {
	if strings.EqualFold(response, "True") {
		return nil
	}
	lower := strings.ToLower(msg)
	if msg == "" || strings.Contains(lower, "not found") {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s", ErrAPIError, msg)
}
