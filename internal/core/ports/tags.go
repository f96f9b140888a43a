package ports

import (
	"context"
	"errors"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// ErrNoTags indicates the tag service knows nothing about the requested item.
var ErrNoTags = errors.New("no tags found")

// TagProvider looks up crowd-sourced tags.
type TagProvider interface {
	TrackTags(ctx context.Context, artist, track string) ([]string, error)
	ArtistTopTags(ctx context.Context, artist string) ([]string, error)
}

// TagEnricher attaches tag lists to a batch of tracks. The returned map is
// keyed by track id; tracks that could not be looked up map to an empty list.
type TagEnricher interface {
	Enrich(ctx context.Context, tracks []domain.Track) map[string][]string
}
