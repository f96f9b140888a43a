package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// EnricherConfig bounds the lookup batch.
type EnricherConfig struct {
	Workers int           `koanf:"workers" validate:"gte=1,lte=32"`
	Delay   time.Duration `koanf:"delay"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DefaultEnricherConfig returns 5 workers, a 100ms pause before each call
// and a 10s per-lookup timeout.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		Workers: 5,
		Delay:   100 * time.Millisecond,
		Timeout: 10 * time.Second,
	}
}

// Enricher looks up tags for library tracks, cache first.
type Enricher struct {
	tags   ports.TagProvider
	cache  *TagCache
	cfg    EnricherConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	lookup LookupFunc
}

// NewEnricher wires an Enricher to a tag provider and a loaded cache.
func NewEnricher(tags ports.TagProvider, cache *TagCache, cfg EnricherConfig, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Enricher{
		tags:   tags,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		sleep:  domain.SleepContext,
	}
	e.lookup = e.fetchTags
	return e
}

type batchStats struct {
	hits, misses, failed, mismatched, skipped int
}

// Enrich returns a tag list per track id. Tracks missing an id, artist or
// name get no entry. Failed lookups map to an empty list. The cache is
// persisted once when the batch is done.
func (e *Enricher) Enrich(ctx context.Context, tracks []domain.Track) map[string][]string {
	out := make(map[string][]string, len(tracks))
	var stats batchStats

	// One job per cache key; duplicates share its result.
	waiting := make(map[string][]string)
	var jobs []Job
	for _, t := range tracks {
		artist := t.PrimaryArtist()
		if t.ID == "" || artist == "" || t.Name == "" {
			stats.skipped++
			continue
		}
		key := domain.TagKey(artist, t.Name)
		if tags, ok := e.cache.Get(key); ok {
			out[t.ID] = tags
			stats.hits++
			continue
		}
		if _, queued := waiting[key]; !queued {
			jobs = append(jobs, Job{TrackID: t.ID, Key: key, Artist: artist, Name: t.Name})
		}
		waiting[key] = append(waiting[key], t.ID)
		stats.misses++
	}

	pool := NewPool(e.cfg.Workers, e.lookup)
	for _, o := range pool.Run(ctx, jobs) {
		ids := waiting[o.Job.Key]
		tags := o.Result.Tags
		switch {
		case o.Result.Err != nil:
			e.logger.Debug("enricher: lookup failed",
				zap.String("artist", o.Job.Artist),
				zap.String("track", o.Job.Name),
				zap.Error(o.Result.Err))
			stats.failed += len(ids)
			tags = []string{}
		case o.Result.TrackID != o.Job.TrackID:
			e.logger.Warn("enricher: result id mismatch",
				zap.String("expected", o.Job.TrackID),
				zap.String("got", o.Result.TrackID))
			stats.mismatched += len(ids)
			tags = []string{}
		case len(tags) > 0:
			e.cache.Put(o.Job.Key, tags)
		}
		if tags == nil {
			tags = []string{}
		}
		for _, id := range ids {
			out[id] = tags
		}
	}

	e.cache.Save(ctx)

	metrics.TagLookups.WithLabelValues("hit").Add(float64(stats.hits))
	metrics.TagLookups.WithLabelValues("miss").Add(float64(stats.misses))
	metrics.TagLookups.WithLabelValues("failed").Add(float64(stats.failed))
	metrics.TagLookups.WithLabelValues("mismatch").Add(float64(stats.mismatched))
	metrics.TagLookups.WithLabelValues("skipped").Add(float64(stats.skipped))

	e.logger.Info("enricher: batch complete",
		zap.Int("tracks", len(tracks)),
		zap.Int("hits", stats.hits),
		zap.Int("misses", stats.misses),
		zap.Int("failed", stats.failed),
		zap.Int("mismatched", stats.mismatched),
		zap.Int("skipped", stats.skipped),
		zap.Int("cache_size", e.cache.Len()))

	return out
}

// fetchTags fetches track tags and artist top tags and merges them.
func (e *Enricher) fetchTags(ctx context.Context, job Job) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.sleep(ctx, e.cfg.Delay); err != nil {
		return Result{TrackID: job.TrackID, Err: err}
	}
	trackTags, err := e.tags.TrackTags(ctx, job.Artist, job.Name)
	if err != nil && !errors.Is(err, ports.ErrNoTags) {
		return Result{TrackID: job.TrackID, Err: err}
	}

	if err := e.sleep(ctx, e.cfg.Delay); err != nil {
		return Result{TrackID: job.TrackID, Err: err}
	}
	artistTags, err := e.tags.ArtistTopTags(ctx, job.Artist)
	if err != nil && !errors.Is(err, ports.ErrNoTags) {
		return Result{TrackID: job.TrackID, Err: err}
	}

	return Result{TrackID: job.TrackID, Tags: MergeTags(trackTags, artistTags)}
}

// MergeTags lower-cases and deduplicates tag names, dropping empty ones.
// First-seen order is kept.
func MergeTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	merged := []string{}
	for _, list := range lists {
		for _, tag := range list {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			merged = append(merged, tag)
		}
	}
	return merged
}
