package provider

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"upgrader/internal/media"
)

// envelope is the common YTS API response wrapper.
type envelope[T any] struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          T      `json:"data"`
}

type listData struct {
	MovieCount int        `json:"movie_count"`
	Movies     []ytsMovie `json:"movies"`
}

type detailData struct {
	Movie *ytsMovie `json:"movie"`
}

type ytsMovie struct {
	ID       int          `json:"id"`
	URL      string       `json:"url"`
	IMDbCode string       `json:"imdb_code"`
	Title    string       `json:"title"`
	Year     int          `json:"year"`
	Rating   float64      `json:"rating"`
	Runtime  int          `json:"runtime"`
	Torrents []ytsTorrent `json:"torrents"`
}

type ytsTorrent struct {
	Hash    string `json:"hash"`
	Quality string `json:"quality"`
	Type    string `json:"type"`
	Seeds   int    `json:"seeds"`
	Peers   int    `json:"peers"`
	Size    string `json:"size"`
}

// looksLikeJSON reports whether a 2xx body should be parsed as API JSON.
func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("{"))
}

// decodeEnvelope parses body into an envelope. ok is false when the body is
// not API JSON.
func decodeEnvelope[T any](contentType string, body []byte) (env envelope[T], ok bool) {
	if !looksLikeJSON(contentType, body) {
		return env, false
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, false
	}
	return env, true
}

func (m ytsMovie) toMedia() media.Movie {
	out := media.Movie{
		ID:       m.ID,
		Title:    m.Title,
		Year:     m.Year,
		URL:      m.URL,
		Rating:   m.Rating,
		IMDbCode: strings.TrimSpace(m.IMDbCode),
		Runtime:  m.Runtime,
	}
	for _, t := range m.Torrents {
		out.Torrents = append(out.Torrents, media.Torrent{
			Quality: t.Quality,
			Type:    t.Type,
			Size:    t.Size,
			Seeds:   t.Seeds,
			Peers:   t.Peers,
			Hash:    t.Hash,
		})
	}
	return out
}

func toMediaMovies(in []ytsMovie) []media.Movie {
	out := make([]media.Movie, 0, len(in))
	for _, m := range in {
		out = append(out, m.toMedia())
	}
	return out
}

// describeBody summarizes a non-API body for logs: the HTML page title when
// there is one, otherwise a short snippet.
func describeBody(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			return t
		}
	}
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if r := []rune(snippet); len(r) > 160 {
		snippet = string(r[:160])
	}
	return snippet
}
