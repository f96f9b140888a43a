// Package app wires configuration, adapters and services into a runnable
// pipeline shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/adapters/jsonstore"
	"github.com/ewilliams-labs/moodmix/internal/adapters/lastfm"
	"github.com/ewilliams-labs/moodmix/internal/adapters/ollama"
	"github.com/ewilliams-labs/moodmix/internal/adapters/spotify"
	"github.com/ewilliams-labs/moodmix/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodmix/internal/config"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
	"github.com/ewilliams-labs/moodmix/internal/worker"
)

// App holds the wired orchestrator and the resources it owns.
type App struct {
	Orchestrator *services.Orchestrator
	closers      []func() error
}

// Stores bundles the two persistence ports.
type Stores struct {
	TagCache ports.TagCacheStore
	History  ports.HistoryStore
	Close    func() error
}

// OpenStores opens the configured store driver.
func OpenStores(cfg config.StoreConfig, logger *zap.Logger) (Stores, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return Stores{}, fmt.Errorf("app: open sqlite store: %w", err)
		}
		return Stores{TagCache: db.TagCache(), History: db.History(), Close: db.Close}, nil
	case config.StoreJSON, "":
		return Stores{
			TagCache: jsonstore.NewTagCacheStore(cfg.TagCachePath, logger),
			History:  jsonstore.NewHistoryStore(cfg.HistoryPath, logger),
			Close:    func() error { return nil },
		}, nil
	default:
		return Stores{}, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}

// New builds the pipeline. The tag cache is loaded once here and shared by
// every run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	stores, err := OpenStores(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a := &App{closers: []func() error{stores.Close}}

	catalog, err := spotify.NewClient(ctx, cfg.Spotify, logger.Named("spotify"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: spotify client: %w", err)
	}
	tags := lastfm.NewClient(nil, cfg.Lastfm, logger.Named("lastfm"))
	classifier := ollama.NewClient(cfg.Ollama, logger.Named("ollama"))

	cache := worker.LoadTagCache(ctx, stores.TagCache, logger)
	enricher := worker.NewEnricher(tags, cache, cfg.Enricher, logger.Named("enricher"))

	a.Orchestrator = services.NewOrchestrator(
		classifier,
		catalog,
		enricher,
		stores.History,
		services.NewScorer(cfg.Scoring),
		services.NewRecommender(catalog, stores.History, cfg.Recommend, logger.Named("recommender")),
		services.NewAssembler(catalog, cfg.Assemble, logger.Named("assembler")),
		cfg.Pipeline,
		logger.Named("pipeline"),
	)
	return a, nil
}

// Close releases owned resources.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
