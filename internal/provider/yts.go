package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"upgrader/internal/config"
	"upgrader/internal/httputil"
	"upgrader/internal/logging"
	"upgrader/internal/media"
	"upgrader/internal/mirror"
	"upgrader/internal/title"
)

// YTS implements the Provider interface over a ranked list of YTS mirrors.
// Calls are synchronous: retries and failover run on the caller's goroutine.
type YTS struct {
	registry  *mirror.Registry
	client    *http.Client
	clock     clockwork.Clock
	logger    zerolog.Logger
	policy    RetryPolicy
	timeout   time.Duration
	slowAfter time.Duration
	limit     int
}

var _ Provider = (*YTS)(nil)

// Option configures a YTS provider.
type Option func(*YTS)

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(y *YTS) {
		if client != nil {
			y.client = client
		}
	}
}

// WithClock overrides the clock used for elapsed time and backoff sleeps.
func WithClock(clock clockwork.Clock) Option {
	return func(y *YTS) {
		if clock != nil {
			y.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(y *YTS) {
		y.logger = logging.Component(logger, "yts")
	}
}

// NewYTS creates a YTS provider over the given registry.
func NewYTS(registry *mirror.Registry, cfg config.Search, opts ...Option) *YTS {
	y := &YTS{
		registry:  registry,
		client:    httputil.NewClient(),
		clock:     clockwork.NewRealClock(),
		logger:    zerolog.Nop(),
		policy:    RetryPolicy{Retries: cfg.Retries, InitialBackoff: cfg.Backoff},
		timeout:   cfg.Timeout,
		slowAfter: cfg.SlowAfter,
		limit:     cfg.Limit,
	}
	if y.limit <= 0 {
		y.limit = 10
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Search queries list_movies.json, sorted by year descending.
func (y *YTS) Search(ctx context.Context, q media.Query) ([]media.Movie, error) {
	term := q.IMDbID
	if !q.ByID() {
		term = title.Query(q.Text, q.Year)
	}
	if term == "" {
		return []media.Movie{}, nil
	}

	params := url.Values{}
	params.Set("query_term", term)
	params.Set("limit", strconv.Itoa(y.limit))
	params.Set("sort_by", "year")
	params.Set("order_by", "desc")

	env, ok, err := fetch[listData](ctx, y, "list_movies.json", params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []media.Movie{}, nil
	}

	movies := toMediaMovies(env.Data.Movies)
	y.logger.Debug().
		Str("query", term).
		Int("results", len(movies)).
		Msg("Search completed")
	return movies, nil
}

// Details queries movie_details.json by IMDb ID or YTS movie ID.
func (y *YTS) Details(ctx context.Context, id string) (*media.Movie, error) {
	id = strings.TrimSpace(id)
	params := url.Values{}
	switch {
	case httputil.ValidateIMDbID(id) == nil:
		params.Set("imdb_id", strings.ToLower(id))
	case httputil.ValidateNumericID(id) == nil:
		params.Set("movie_id", id)
	default:
		return nil, fmt.Errorf("invalid movie identifier %q", id)
	}

	env, ok, err := fetch[detailData](ctx, y, "movie_details.json", params)
	if err != nil {
		return nil, err
	}
	if !ok || env.Data.Movie == nil || (env.Data.Movie.ID == 0 && env.Data.Movie.Title == "") {
		return nil, nil
	}
	m := env.Data.Movie.toMedia()
	return &m, nil
}

// fetch runs one logical request against every mirror in registry order,
// following the RetryPolicy decisions. ok is false when all mirrors were
// exhausted. The only error returned is the caller's context error.
func fetch[T any](ctx context.Context, y *YTS, endpoint string, params url.Values) (envelope[T], bool, error) {
	var zero envelope[T]
	for _, base := range y.registry.Endpoints() {
		reqURL := httputil.WithQuery(base+"/"+endpoint, params)
		state := y.policy.Start()
		for {
			env, outcome, elapsed, err := attempt[T](ctx, y, reqURL)
			if isCancelled(ctx) {
				return zero, false, ctx.Err()
			}

			step, nextState := y.policy.Decide(state, outcome)
			ev := y.logger.Debug().
				Str("mirror", base).
				Int("attempt", state.N).
				Str("outcome", outcome.String()).
				Str("action", step.Action.String()).
				Dur("elapsed", elapsed)
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Msg("Mirror attempt")

			switch step.Action {
			case ActionSuccess:
				return env, true, nil
			case ActionRetry:
				if err := y.sleep(ctx, step.Backoff); err != nil {
					return zero, false, err
				}
				state = nextState
				continue
			}
			break
		}
	}
	y.logger.Warn().Str("endpoint", endpoint).Msg("All mirrors failed")
	return zero, false, nil
}

// attempt performs one request and classifies it.
func attempt[T any](ctx context.Context, y *YTS, reqURL string) (envelope[T], Outcome, time.Duration, error) {
	var zero envelope[T]

	attemptCtx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	req, err := httputil.NewRequest(attemptCtx, reqURL, "application/json, */*;q=0.1")
	if err != nil {
		return zero, OutcomeNotJSON, 0, err
	}

	start := y.clock.Now()
	resp, err := y.client.Do(req)
	if err != nil {
		return zero, classifyError(err), y.clock.Since(start), err
	}
	defer resp.Body.Close()

	body, err := httputil.ReadBody(resp)
	elapsed := y.clock.Since(start)
	if err != nil {
		return zero, OutcomeTransient, elapsed, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, OutcomeTransient, elapsed, &httputil.StatusError{Code: resp.StatusCode, URL: httputil.RedactURL(reqURL)}
	}

	env, ok := decodeEnvelope[T](resp.Header.Get("Content-Type"), body)
	if !ok {
		return zero, OutcomeNotJSON, elapsed, fmt.Errorf("mirror did not return API JSON: %q", describeBody(body))
	}

	if elapsed >= y.slowAfter {
		return env, OutcomeSlow, elapsed, nil
	}
	return env, OutcomeOK, elapsed, nil
}

// sleep waits for d or until ctx ends.
func (y *YTS) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-y.clock.After(d):
		return nil
	}
}
