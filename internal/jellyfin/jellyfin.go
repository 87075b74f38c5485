// Package jellyfin lists under-resolution, well-reviewed movies from a
// Jellyfin server. Its CSV export is the usual input of a batch run.
package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"upgrader/internal/httputil"
	"upgrader/internal/logging"
)

// ClientName identifies this tool to the server.
const ClientName = "upgrader"

// ErrNoUser is returned when no user id can be determined for the API key.
var ErrNoUser = errors.New("unable to determine jellyfin user id")

// Movie is one library entry.
type Movie struct {
	ID            string
	Name          string
	Year          int
	CriticRating  float64 // 0-100
	CriticSummary string
	MaxHeight     int // 0 when unknown
	IMDbID        string
	TMDbID        string
}

// Filter selects the movies worth upgrading.
type Filter struct {
	MaxHeight int     // keep movies at or below this height
	MinRating float64 // critic rating threshold; values <= 10 are read as a 10-point scale
	PageSize  int
}

// Threshold returns the critic threshold on the 0-100 scale.
func (f Filter) Threshold() float64 {
	if f.MinRating <= 10 {
		return f.MinRating * 10
	}
	return f.MinRating
}

type item struct {
	ID                  string            `json:"Id"`
	Name                string            `json:"Name"`
	ProductionYear      int               `json:"ProductionYear"`
	CriticRating        *float64          `json:"CriticRating"`
	CriticRatingSummary string            `json:"CriticRatingSummary"`
	MediaStreams        []mediaStream     `json:"MediaStreams"`
	ProviderIDs         map[string]string `json:"ProviderIds"`
}

type mediaStream struct {
	Type   string `json:"Type"`
	Height int    `json:"Height"`
}

type itemsPage struct {
	Items            []item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

type user struct {
	ID string `json:"Id"`
}

// Client talks to one Jellyfin server.
type Client struct {
	baseURL string
	client  *http.Client
	header  http.Header
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.Component(logger, "jellyfin")
	}
}

// New creates a client for baseURL authenticated with apiKey. version is
// reported in the authorization header.
func New(baseURL, apiKey, version string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if err := httputil.ValidateURL(baseURL); err != nil {
		return nil, fmt.Errorf("jellyfin base url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("jellyfin api key is required")
	}

	c := &Client{
		baseURL: baseURL,
		client:  httputil.NewClient(),
		header:  authHeader(apiKey, version),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// authHeader builds the MediaBrowser authorization headers. The device id
// is a UUIDv5 of host and user, so it is stable across runs.
func authHeader(apiKey, version string) http.Header {
	device := hostnameOr("cli")
	login := os.Getenv("USER")
	if login == "" {
		login = os.Getenv("USERNAME")
	}
	if login == "" {
		login = "user"
	}
	deviceID := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(device+"-"+login))
	if version == "" {
		version = "dev"
	}

	h := http.Header{}
	h.Set("X-Emby-Authorization", fmt.Sprintf(
		`MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q`,
		ClientName, device, deviceID.String(), version,
	))
	h.Set("X-Emby-Token", apiKey)
	return h
}

func hostnameOr(fallback string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fallback
	}
	return host
}

// UserID returns the id of the key's user, falling back to the first user
// listed by the server.
func (c *Client) UserID(ctx context.Context) (string, error) {
	var me user
	err := httputil.GetJSON(ctx, c.client, c.baseURL+"/Users/Me", c.header, &me)
	if err == nil && me.ID != "" {
		return me.ID, nil
	}
	c.logger.Debug().Err(err).Msg("Users/Me unavailable, listing users")

	var users []user
	if err := httputil.GetJSON(ctx, c.client, c.baseURL+"/Users", c.header, &users); err != nil {
		return "", fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if u.ID != "" {
			return u.ID, nil
		}
	}
	return "", ErrNoUser
}

// eachMovie pages through the user's movies.
func (c *Client) eachMovie(ctx context.Context, userID string, pageSize int, fn func(item) error) error {
	if pageSize <= 0 {
		pageSize = 200
	}
	endpoint := httputil.BuildURL(c.baseURL, "Users", userID, "Items")

	start := 0
	total := -1
	for {
		params := url.Values{}
		params.Set("IncludeItemTypes", "Movie")
		params.Set("Recursive", "true")
		params.Set("Fields", "MediaStreams,CriticRating,CriticRatingSummary,ProviderIds,ProductionYear,Path")
		params.Set("SortBy", "SortName")
		params.Set("SortOrder", "Ascending")
		params.Set("StartIndex", strconv.Itoa(start))
		params.Set("Limit", strconv.Itoa(pageSize))

		var page itemsPage
		if err := httputil.GetJSON(ctx, c.client, httputil.WithQuery(endpoint, params), c.header, &page); err != nil {
			return fmt.Errorf("fetching items at %d: %w", start, err)
		}
		if total < 0 {
			total = page.TotalRecordCount
		}

		count := len(page.Items)
		c.logger.Debug().Int("start", start).Int("count", count).Int("total", total).Msg("Fetched page")
		if count == 0 {
			return nil
		}
		for _, it := range page.Items {
			if err := fn(it); err != nil {
				return err
			}
		}
		start += count
		if (total > 0 && start >= total) || count < pageSize {
			return nil
		}
	}
}

func (c *Client) itemDetail(ctx context.Context, id string) (item, error) {
	params := url.Values{}
	params.Set("Fields", "MediaStreams,ProviderIds")

	var it item
	u := httputil.WithQuery(httputil.BuildURL(c.baseURL, "Items", id), params)
	if err := httputil.GetJSON(ctx, c.client, u, c.header, &it); err != nil {
		return item{}, err
	}
	return it, nil
}

// LowResMovies returns movies whose best video stream is at most
// f.MaxHeight and whose critic rating meets the threshold. Movies without
// stream info in the listing get one detail lookup; those still without a
// known height are left out.
func (c *Client) LowResMovies(ctx context.Context, f Filter) ([]Movie, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("jellyfin user lookup: %w", err)
	}

	threshold := f.Threshold()
	var out []Movie
	err = c.eachMovie(ctx, userID, f.PageSize, func(it item) error {
		if it.CriticRating == nil || *it.CriticRating < threshold {
			return nil
		}
		m := toMovie(it)

		if m.MaxHeight == 0 && m.ID != "" {
			det, err := c.itemDetail(ctx, m.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug().Err(err).Str("item", m.ID).Msg("Detail fetch failed")
			} else {
				mergeDetail(&m, det)
			}
		}

		if m.MaxHeight > 0 && m.MaxHeight <= f.MaxHeight {
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().Int("movies", len(out)).Float64("threshold", threshold).Int("max_height", f.MaxHeight).Msg("Inventory collected")
	return out, nil
}

func toMovie(it item) Movie {
	m := Movie{
		ID:            it.ID,
		Name:          it.Name,
		Year:          it.ProductionYear,
		CriticSummary: it.CriticRatingSummary,
		MaxHeight:     maxVideoHeight(it.MediaStreams),
		IMDbID:        providerID(it.ProviderIDs, "Imdb"),
		TMDbID:        providerID(it.ProviderIDs, "Tmdb"),
	}
	if it.CriticRating != nil {
		m.CriticRating = *it.CriticRating
	}
	return m
}

func mergeDetail(m *Movie, det item) {
	if m.IMDbID == "" {
		m.IMDbID = providerID(det.ProviderIDs, "Imdb")
	}
	if m.TMDbID == "" {
		m.TMDbID = providerID(det.ProviderIDs, "Tmdb")
	}
	if h := maxVideoHeight(det.MediaStreams); h > m.MaxHeight {
		m.MaxHeight = h
	}
}

func maxVideoHeight(streams []mediaStream) int {
	best := 0
	for _, s := range streams {
		if strings.EqualFold(s.Type, "Video") && s.Height > best {
			best = s.Height
		}
	}
	return best
}

// providerID looks key up case-insensitively.
func providerID(ids map[string]string, key string) string {
	for k, v := range ids {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
