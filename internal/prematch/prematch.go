// Package prematch refines a noisy title and year against movie identity
// services (TMDB, OMDb, IMDb suggestions) before the torrent-index search.
package prematch

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"upgrader/internal/httputil"
	"upgrader/internal/logging"
	"upgrader/internal/title"
)

var (
	// ErrAPIKeyMissing is returned by keyed resolvers without a key.
	ErrAPIKeyMissing = errors.New("api key missing")
	// ErrNotFound is returned when a service has no usable candidate.
	ErrNotFound = errors.New("no match found")
	// ErrAPIError is returned when a service answers with an error payload.
	ErrAPIError = errors.New("api error")
)

// Match is the refined identity of a movie.
type Match struct {
	Title  string
	Year   int
	IMDbID string
}

// Resolver looks a movie up in one identity service.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, title string, year int) (Match, error)
}

// Candidate is one result from an identity service.
type Candidate struct {
	Title      string
	Year       int
	IMDbID     string
	ServiceID  string // the service's own identifier, if any
	Popularity float64
}

// Pick returns the best candidate for want/year. Same-year candidates are
// preferred when any exist; the rest are ranked by popularity, token overlap
// with want, then year proximity. Ties keep the earliest candidate.
func Pick(cands []Candidate, want string, year int) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}

	pool := cands
	if year > 0 {
		var same []Candidate
		for _, c := range cands {
			if c.Year == year {
				same = append(same, c)
			}
		}
		if len(same) > 0 {
			pool = same
		}
	}

	score := func(c Candidate) [3]float64 {
		s := [3]float64{c.Popularity, title.Overlap(want, c.Title), 0}
		if year > 0 && c.Year > 0 {
			s[2] = -math.Abs(float64(year - c.Year))
		}
		return s
	}

	best := pool[0]
	bestScore := score(best)
	for _, c := range pool[1:] {
		s := score(c)
		if greater(s, bestScore) {
			best, bestScore = c, s
		}
	}
	return best, true
}

func greater(a, b [3]float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// toMatch fills a match from c, keeping the input where c is empty.
func toMatch(c Candidate, want string, year int) Match {
	m := Match{Title: strings.TrimSpace(c.Title), Year: c.Year, IMDbID: strings.TrimSpace(c.IMDbID)}
	if m.Title == "" {
		m.Title = want
	}
	if m.Year == 0 {
		m.Year = year
	}
	return m
}

// parseYear reads the leading 4-digit year of strings such as "2019",
// "2019-05-31" or "2019–2021".
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y <= 0 {
		return 0
	}
	return y
}

type options struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
	timeout time.Duration
}

// Option configures a resolver.
type Option func(*options)

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithBaseURL points the resolver at another API root.
func WithBaseURL(base string) Option {
	return func(o *options) {
		if base != "" {
			o.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func newOptions(defaultBase, component string, opts []Option) options {
	o := options{
		client:  httputil.NewClient(),
		baseURL: defaultBase,
		logger:  zerolog.Nop(),
		timeout: 8 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Component(o.logger, component)
	return o
}
