package ports

import (
	"context"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// SearchOptions narrows a catalog search.
type SearchOptions struct {
	Limit  int
	Market string
}

// CatalogProvider is the library/catalog service the pipeline reads from and
// writes the final playlist to.
type CatalogProvider interface {
	// LibraryTracks returns saved and owned-playlist tracks, deduplicated by
	// id and shuffled.
	LibraryTracks(ctx context.Context) ([]domain.Track, error)
	// TopGenres returns genres of the user's top artists.
	TopGenres(ctx context.Context, limit int) ([]string, error)
	SearchTracks(ctx context.Context, query string, opts SearchOptions) ([]domain.Track, error)
	CreatePlaylist(ctx context.Context, name, description string) (domain.Playlist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}
