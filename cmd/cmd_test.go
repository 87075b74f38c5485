package cmd

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duneList = `{"status":"ok","status_message":"Query was successful","data":{"movie_count":2,"movies":[
{"id":57427,"url":"https://yts.mx/movies/dune-part-two-2024","imdb_code":"tt15239678","title":"Dune: Part Two","year":2024,"rating":8.6,"runtime":166,
 "torrents":[{"hash":"A1B2C3D4E5F60718293A4B5C6D7E8F9012345678","quality":"1080p","type":"web","seeds":1200,"peers":300,"size":"3.1 GB"}]},
{"id":35641,"url":"https://yts.mx/movies/dune-2021","imdb_code":"tt1160419","title":"Dune","year":2021,"rating":8.0,"runtime":155,
 "torrents":[{"hash":"C1B2C3D4E5F60718293A4B5C6D7E8F9012345678","quality":"720p","type":"bluray","seeds":90,"peers":10,"size":"1.4 GB"}]}]}}`

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"YTS_API_BASE", "TMDB_API_KEY", "OMDB_API_KEY", "UPGRADER_DEBUG"} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "upgrader dev\n", out)
}

func TestCommandsAgainstMirror(t *testing.T) {
	isolate(t)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/api/v2/list_movies.json") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(duneList))
	}))
	defer server.Close()

	t.Run("search", func(t *testing.T) {
		out, err := execute(t, "search", "--key", "dune", "--mirror", server.URL, "--retries", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "Dune: Part Two")
		assert.Contains(t, out, "tt1160419")
	})

	t.Run("enrich", func(t *testing.T) {
		dir := t.TempDir()
		in := filepath.Join(dir, "movies.csv")
		require.NoError(t, os.WriteFile(in, []byte("name,year,max_height\nDune,2021,480\nHigh Res,2020,1080\n"), 0o644))

		before := hits.Load()
		_, err := execute(t, "enrich", in, "--mirror", server.URL, "--retries", "0", "--prematch", "none", "--max-height", "719")
		require.NoError(t, err)
		assert.Equal(t, int32(1), hits.Load()-before)

		f, err := os.Open(in)
		require.NoError(t, err)
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)

		header := records[0]
		col := func(rec []string, name string) string {
			for i, h := range header {
				if h == name {
					return rec[i]
				}
			}
			t.Fatalf("missing column %s", name)
			return ""
		}
		assert.Equal(t, "Dune", col(records[1], "yts_title"))
		assert.Equal(t, "2021", col(records[1], "yts_year"))
		assert.Equal(t, "720p", col(records[1], "yts_next_quality"))
		assert.True(t, strings.HasPrefix(col(records[1], "magnet"), "magnet:?xt=urn:btih:c1b2c3d4"))
		assert.Empty(t, col(records[2], "yts_title"))
	})
}
