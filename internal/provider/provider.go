// Package provider defines the interface for torrent-index providers and the
// mirror-failover YTS implementation.
package provider

import (
	"context"

	"upgrader/internal/media"
)

// Provider is the interface that torrent-index providers must implement.
type Provider interface {
	// Search returns candidate movies for a free-text or IMDb ID query.
	// An empty slice with a nil error means no mirror produced results.
	Search(ctx context.Context, q media.Query) ([]media.Movie, error)

	// Details returns one movie with its torrents, by IMDb ID ("tt...")
	// or provider movie ID. It returns nil when nothing was found.
	Details(ctx context.Context, id string) (*media.Movie, error)
}
