package jellyfin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// library serves a small Jellyfin library. Items are paged two at a time.
func library(t *testing.T, meStatus int) *httptest.Server {
	t.Helper()
	items := []string{
		`{"Id":"a","Name":"Alien","ProductionYear":1979,"CriticRating":98,"CriticRatingSummary":"Fresh","MediaStreams":[{"Type":"Audio"},{"Type":"Video","Height":576}],"ProviderIds":{"Imdb":"tt0078748","Tmdb":"348"}}`,
		`{"Id":"b","Name":"Arrival","ProductionYear":2016,"CriticRating":94,"MediaStreams":[{"Type":"Video","Height":1080}]}`,
		`{"Id":"c","Name":"Bad Movie","ProductionYear":2001,"CriticRating":12,"MediaStreams":[{"Type":"Video","Height":480}]}`,
		`{"Id":"d","Name":"Heat","ProductionYear":1995,"CriticRating":88}`,
		`{"Id":"e","Name":"Unrated","ProductionYear":2010,"MediaStreams":[{"Type":"Video","Height":360}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Users/Me", func(w http.ResponseWriter, r *http.Request) {
		if meStatus != http.StatusOK {
			w.WriteHeader(meStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Id":"u1"}`))
	})
	mux.HandleFunc("/Users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"Name":"nobody"},{"Id":"u1","Name":"admin"}]`))
	})
	mux.HandleFunc("/Users/u1/Items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "Movie", r.URL.Query().Get("IncludeItemTypes"))
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("Limit"))
		end := min(start+limit, len(items))
		if start > len(items) {
			start = len(items)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"TotalRecordCount":` + strconv.Itoa(len(items)) + `,"Items":[` + strings.Join(items[start:end], ",") + `]}`))
	})
	mux.HandleFunc("/Items/d", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Id":"d","MediaStreams":[{"Type":"Video","Height":720},{"Type":"Video","Height":480}],"ProviderIds":{"IMDB":"tt0113277"}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLowResMovies(t *testing.T) {
	server := library(t, http.StatusOK)
	c, err := New(server.URL, "secret", "1.0.0")
	require.NoError(t, err)

	movies, err := c.LowResMovies(context.Background(), Filter{MaxHeight: 719, MinRating: 6.0, PageSize: 2})
	require.NoError(t, err)

	require.Len(t, movies, 1)
	assert.Equal(t, Movie{
		ID:            "a",
		Name:          "Alien",
		Year:          1979,
		CriticRating:  98,
		CriticSummary: "Fresh",
		MaxHeight:     576,
		IMDbID:        "tt0078748",
		TMDbID:        "348",
	}, movies[0])
}

func TestLowResMoviesDetailFallback(t *testing.T) {
	server := library(t, http.StatusOK)
	c, err := New(server.URL, "secret", "1.0.0")
	require.NoError(t, err)

	movies, err := c.LowResMovies(context.Background(), Filter{MaxHeight: 720, MinRating: 80, PageSize: 200})
	require.NoError(t, err)

	require.Len(t, movies, 2)
	assert.Equal(t, "Alien", movies[0].Name)
	assert.Equal(t, "Heat", movies[1].Name)
	assert.Equal(t, 720, movies[1].MaxHeight)
	assert.Equal(t, "tt0113277", movies[1].IMDbID)
}

func TestUserIDFallsBackToUserList(t *testing.T) {
	server := library(t, http.StatusUnauthorized)
	c, err := New(server.URL, "secret", "")
	require.NoError(t, err)

	id, err := c.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestFilterThreshold(t *testing.T) {
	assert.Equal(t, 60.0, Filter{MinRating: 6}.Threshold())
	assert.Equal(t, 100.0, Filter{MinRating: 10}.Threshold())
	assert.Equal(t, 75.0, Filter{MinRating: 75}.Threshold())
}

func TestAuthHeader(t *testing.T) {
	t.Setenv("USER", "alice")
	h := authHeader("key", "2.0.0")

	assert.Equal(t, "key", h.Get("X-Emby-Token"))
	auth := h.Get("X-Emby-Authorization")
	assert.True(t, strings.HasPrefix(auth, `MediaBrowser Client="upgrader", Device="`))
	assert.Contains(t, auth, `Version="2.0.0"`)

	// Stable across calls.
	assert.Equal(t, auth, authHeader("key", "2.0.0").Get("X-Emby-Authorization"))

	host := hostnameOr("cli")
	want := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host+"-alice")).String()
	assert.Contains(t, auth, `DeviceId="`+want+`"`)
}

func TestNewValidates(t *testing.T) {
	_, err := New("ftp://media.local", "key", "")
	assert.Error(t, err)
	_, err = New("http://media.local:8096", " ", "")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Movie{
		{ID: "a", Name: "Alien, Director's Cut", Year: 1979, CriticRating: 98, MaxHeight: 576, IMDbID: "tt0078748"},
		{ID: "z", Name: "Unknown", CriticRating: 61.24},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"name,year,critic_rating,critic_summary,max_height,jellyfin_id,imdb_id,tmdb_id\n"+
			"\"Alien, Director's Cut\",1979,98.0,,576,a,tt0078748,\n"+
			"Unknown,,61.2,,,z,,\n",
		buf.String())
}
