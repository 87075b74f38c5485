package provider

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upgrader/internal/config"
	"upgrader/internal/media"
	"upgrader/internal/mirror"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func testSearchConfig() config.Search {
	return config.Search{
		Timeout:   5 * time.Second,
		SlowAfter: time.Minute,
		Retries:   2,
		Backoff:   0,
		Limit:     10,
	}
}

// fixtureServer serves a fixture and counts hits.
func fixtureServer(t *testing.T, contentType string, status int, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestSearchSuccess(t *testing.T) {
	body := loadFixture(t, "list_movies.json")
	var gotPath string
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer server.Close()

	yts := NewYTS(mirror.New([]string{server.URL}, nil), testSearchConfig())
	movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune: Part Two", 2024))
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Dune: Part Two", movies[0].Title)

	assert.Equal(t, "/api/v2/list_movies.json", gotPath)
	assert.Equal(t, map[string]string{
		"query_term": "dune part two 2024",
		"limit":      "10",
		"sort_by":    "year",
		"order_by":   "desc",
	}, gotQuery)
}

func TestSearchByIMDbID(t *testing.T) {
	var term string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term = r.URL.Query().Get("query_term")
		w.Header().Set("Content-Type", "application/json")
		w.Write(loadFixture(t, "list_empty.json"))
	}))
	defer server.Close()

	yts := NewYTS(mirror.New([]string{server.URL}, nil), testSearchConfig())
	movies, err := yts.Search(context.Background(), media.NewIDQuery("tt1160419"))
	require.NoError(t, err)
	assert.Empty(t, movies)
	assert.NotNil(t, movies)
	assert.Equal(t, "tt1160419", term)
}

func TestSearchEmptyQuery(t *testing.T) {
	server, hits := fixtureServer(t, "application/json", http.StatusOK, loadFixture(t, "list_movies.json"))
	yts := NewYTS(mirror.New([]string{server.URL}, nil), testSearchConfig())

	movies, err := yts.Search(context.Background(), media.NewTextQuery("  ", 0))
	require.NoError(t, err)
	assert.Empty(t, movies)
	assert.Zero(t, hits.Load())
}

func TestSearchNotJSONFailsOverWithoutRetry(t *testing.T) {
	blocked, blockedHits := fixtureServer(t, "text/html; charset=UTF-8", http.StatusOK, loadFixture(t, "challenge.html"))
	good, goodHits := fixtureServer(t, "application/json", http.StatusOK, loadFixture(t, "list_movies.json"))

	yts := NewYTS(mirror.New([]string{blocked.URL, good.URL}, nil), testSearchConfig())
	movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune", 0))
	require.NoError(t, err)
	assert.Len(t, movies, 2)

	assert.Equal(t, int32(1), blockedHits.Load())
	assert.Equal(t, int32(1), goodHits.Load())
}

func TestSearchTransientRetriesThenFailsOver(t *testing.T) {
	flaky, flakyHits := fixtureServer(t, "text/plain", http.StatusServiceUnavailable, []byte("busy"))
	good, goodHits := fixtureServer(t, "application/json", http.StatusOK, loadFixture(t, "list_movies.json"))

	cfg := testSearchConfig()
	cfg.Retries = 3
	yts := NewYTS(mirror.New([]string{flaky.URL, good.URL}, nil), cfg)
	movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune", 0))
	require.NoError(t, err)
	assert.Len(t, movies, 2)

	assert.Equal(t, int32(4), flakyHits.Load(), "retries+1 requests on the failing mirror")
	assert.Equal(t, int32(1), goodHits.Load())
}

func TestSearchAllDNSFailures(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		calls[r.URL.Host]++
		mu.Unlock()
		return nil, &net.DNSError{Err: "no such host", Name: r.URL.Hostname(), IsNotFound: true}
	})}

	var logs bytes.Buffer
	yts := NewYTS(
		mirror.New(nil, mirror.Defaults),
		testSearchConfig(),
		WithHTTPClient(client),
		WithLogger(zerolog.New(&logs)),
	)
	movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune", 2021))
	require.NoError(t, err)
	assert.Empty(t, movies)

	require.Len(t, calls, len(mirror.Defaults))
	for host, n := range calls {
		assert.Equal(t, 1, n, "host %s", host)
	}
	assert.Contains(t, logs.String(), "All mirrors failed")
}

func TestSearchSlowSuccessIsRetried(t *testing.T) {
	server, hits := fixtureServer(t, "application/json", http.StatusOK, loadFixture(t, "list_movies.json"))

	clock := clockwork.NewFakeClock()
	base := server.Client().Transport
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := base.RoundTrip(r)
		clock.Advance(10 * time.Second)
		return resp, err
	})}

	cfg := testSearchConfig()
	cfg.SlowAfter = 9 * time.Second
	cfg.Retries = 2
	yts := NewYTS(mirror.New([]string{server.URL}, nil), cfg, WithHTTPClient(client), WithClock(clock))

	movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune", 0))
	require.NoError(t, err)
	assert.Len(t, movies, 2, "the last slow response is still used")
	assert.Equal(t, int32(3), hits.Load())
}

func TestSearchBackoffUsesClock(t *testing.T) {
	flaky, flakyHits := fixtureServer(t, "text/plain", http.StatusBadGateway, nil)

	clock := clockwork.NewFakeClock()
	cfg := testSearchConfig()
	cfg.Retries = 2
	cfg.Backoff = 750 * time.Millisecond
	yts := NewYTS(mirror.New([]string{flaky.URL}, nil), cfg, WithClock(clock))

	type result struct {
		movies []media.Movie
		err    error
	}
	done := make(chan result, 1)
	go func() {
		movies, err := yts.Search(context.Background(), media.NewTextQuery("Dune", 0))
		done <- result{movies, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, d := range []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(d)
	}

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Empty(t, res.movies)
	case <-ctx.Done():
		t.Fatal("search did not finish")
	}
	assert.Equal(t, int32(3), flakyHits.Load())
}

func TestSearchBackoffRestartsOnEachMirror(t *testing.T) {
	first, firstHits := fixtureServer(t, "text/plain", http.StatusBadGateway, nil)
	second, secondHits := fixtureServer(t, "text/plain", http.StatusBadGateway, nil)

	clock := clockwork.NewFakeClock()
	cfg := testSearchConfig()
	cfg.Retries = 1
	cfg.Backoff = 750 * time.Millisecond
	yts := NewYTS(mirror.New([]string{first.URL, second.URL}, nil), cfg, WithClock(clock))

	done := make(chan []media.Movie, 1)
	go func() {
		movies, _ := yts.Search(context.Background(), media.NewTextQuery("Dune", 0))
		done <- movies
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Each mirror waits the base backoff once before its single retry.
	for i, hits := range []*atomic.Int32{firstHits, secondHits} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.Equal(t, int32(1), hits.Load(), "mirror %d before its retry", i)

		clock.Advance(749 * time.Millisecond)
		assert.Equal(t, int32(1), hits.Load(), "mirror %d retried before 750ms", i)
		clock.Advance(time.Millisecond)
	}

	select {
	case movies := <-done:
		assert.Empty(t, movies)
	case <-ctx.Done():
		t.Fatal("second mirror waited longer than the base backoff")
	}
	assert.Equal(t, int32(2), firstHits.Load())
	assert.Equal(t, int32(2), secondHits.Load())
}

func TestSearchCancelledDuringBackoff(t *testing.T) {
	flaky, _ := fixtureServer(t, "text/plain", http.StatusInternalServerError, nil)

	clock := clockwork.NewFakeClock()
	cfg := testSearchConfig()
	cfg.Backoff = time.Hour
	yts := NewYTS(mirror.New([]string{flaky.URL}, nil), cfg, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := yts.Search(ctx, media.NewTextQuery("Dune", 0))
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-waitCtx.Done():
		t.Fatal("search ignored cancellation")
	}
}

func TestDetails(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write(loadFixture(t, "movie_details.json"))
	}))
	defer server.Close()

	yts := NewYTS(mirror.New([]string{server.URL}, nil), testSearchConfig())

	movie, err := yts.Details(context.Background(), "TT1160419")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "Dune", movie.Title)
	assert.Equal(t, "imdb_id=tt1160419", gotQuery)

	movie, err = yts.Details(context.Background(), "35641")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "movie_id=35641", gotQuery)
}

func TestDetailsMissing(t *testing.T) {
	server, _ := fixtureServer(t, "application/json", http.StatusOK, loadFixture(t, "details_missing.json"))
	yts := NewYTS(mirror.New([]string{server.URL}, nil), testSearchConfig())

	movie, err := yts.Details(context.Background(), "tt0000000")
	require.NoError(t, err)
	assert.Nil(t, movie)
}

func TestDetailsInvalidID(t *testing.T) {
	yts := NewYTS(mirror.New(nil, mirror.Defaults), testSearchConfig())
	_, err := yts.Details(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}
