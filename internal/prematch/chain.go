package prematch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"upgrader/internal/config"
	"upgrader/internal/logging"
)

// Chain runs resolvers in order until one yields an IMDb ID.
type Chain struct {
	resolvers []Resolver
	logger    zerolog.Logger
}

// NewChain creates a chain over resolvers.
func NewChain(logger zerolog.Logger, resolvers ...Resolver) *Chain {
	return &Chain{
		resolvers: resolvers,
		logger:    logging.Component(logger, "prematch"),
	}
}

// FromConfig builds the chain for the configured mode. In auto mode keyed
// resolvers without a key are left out.
func FromConfig(cfg config.PreMatch, logger zerolog.Logger, opts ...Option) (*Chain, error) {
	opts = append([]Option{WithLogger(logger), WithTimeout(cfg.Timeout)}, opts...)

	var resolvers []Resolver
	switch strings.ToLower(cfg.Mode) {
	case config.ModeNone, "":
	case config.ModeTMDB:
		resolvers = append(resolvers, NewTMDB(cfg.TMDBKey, opts...))
	case config.ModeOMDb:
		resolvers = append(resolvers, NewOMDb(cfg.OMDbKey, opts...))
	case config.ModeIMDbSuggest:
		resolvers = append(resolvers, NewIMDbSuggest(opts...))
	case config.ModeAuto:
		if cfg.TMDBKey != "" {
			resolvers = append(resolvers, NewTMDB(cfg.TMDBKey, opts...))
		}
		if cfg.OMDbKey != "" {
			resolvers = append(resolvers, NewOMDb(cfg.OMDbKey, opts...))
		}
		resolvers = append(resolvers, NewIMDbSuggest(opts...))
	default:
		return nil, fmt.Errorf("unsupported prematch mode %q", cfg.Mode)
	}
	return NewChain(logger, resolvers...), nil
}

// Names lists the resolvers in trial order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}

// Refine returns the first match carrying an IMDb ID. Failing that it
// returns the first match that changed the title or year, and otherwise
// the input. Resolver errors are logged and never returned.
func (c *Chain) Refine(ctx context.Context, want string, year int) Match {
	input := Match{Title: want, Year: year}
	var refined *Match

	for _, r := range c.resolvers {
		if ctx.Err() != nil {
			break
		}
		m, err := r.Resolve(ctx, want, year)
		if err != nil {
			ev := c.logger.Debug()
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAPIKeyMissing) {
				ev = c.logger.Warn()
			}
			ev.Err(err).Str("resolver", r.Name()).Str("title", want).Msg("Pre-match lookup failed")
			continue
		}

		if m.IMDbID != "" {
			c.logger.Debug().
				Str("resolver", r.Name()).
				Str("title", m.Title).
				Int("year", m.Year).
				Str("imdb_id", m.IMDbID).
				Msg("Pre-match resolved")
			return m
		}
		if refined == nil && changed(input, m) {
			refined = &m
		}
	}

	if refined != nil {
		return *refined
	}
	return input
}

func changed(in, out Match) bool {
	if out.Title != "" && !strings.EqualFold(strings.TrimSpace(out.Title), strings.TrimSpace(in.Title)) {
		return true
	}
	return out.Year != 0 && out.Year != in.Year
}
