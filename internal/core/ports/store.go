package ports

import (
	"context"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// TagCacheStore persists the tag cache between runs.
// Load returns an empty map (not an error) when nothing is stored yet.
type TagCacheStore interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, entries map[string][]string) error
}

// HistoryStore persists the recommendation history between runs.
type HistoryStore interface {
	Load(ctx context.Context) (domain.History, error)
	Save(ctx context.Context, h domain.History) error
}
