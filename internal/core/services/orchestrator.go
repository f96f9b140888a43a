package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// PipelineParams holds the orchestrator's own knobs.
type PipelineParams struct {
	TagSampleSize  int `koanf:"tag_sample_size" validate:"gte=1"`
	TopArtistLimit int `koanf:"top_artist_limit" validate:"gte=1,lte=50"`
}

// DefaultPipelineParams samples 150 tracks for tagging and reads genres from
// 20 top artists.
func DefaultPipelineParams() PipelineParams {
	return PipelineParams{TagSampleSize: 150, TopArtistLimit: 20}
}

// Orchestrator runs the mood-to-playlist pipeline.
type Orchestrator struct {
	classifier  ports.EmotionClassifier
	catalog     ports.CatalogProvider
	enricher    ports.TagEnricher
	history     ports.HistoryStore
	scorer      *Scorer
	recommender *Recommender
	assembler   *Assembler
	params      PipelineParams
	logger      *zap.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	classifier ports.EmotionClassifier,
	catalog ports.CatalogProvider,
	enricher ports.TagEnricher,
	history ports.HistoryStore,
	scorer *Scorer,
	recommender *Recommender,
	assembler *Assembler,
	params PipelineParams,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier:  classifier,
		catalog:     catalog,
		enricher:    enricher,
		history:     history,
		scorer:      scorer,
		recommender: recommender,
		assembler:   assembler,
		params:      params,
		logger:      logger,
	}
}

// Generate turns free mood text into a populated playlist. Hard aborts are
// returned as errors wrapping one of the domain sentinels.
func (o *Orchestrator) Generate(ctx context.Context, text string) (domain.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.PipelineRuns.WithLabelValues("no_text").Inc()
		return domain.Result{}, domain.ErrNoMoodText
	}

	log := o.logger.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	log.Info("pipeline: run started", zap.Int("text_len", len(text)))

	res, err := o.run(ctx, log, text)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(outcomeLabel(err)).Inc()
		log.Error("pipeline: run aborted", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return domain.Result{}, err
	}

	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	log.Info("pipeline: run finished",
		zap.String("mood", string(res.DominantMood)),
		zap.Int("tracks", len(res.Tracks)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, text string) (domain.Result, error) {
	// 1. Classify
	done := stage("classify")
	profile, err := o.classifier.Classify(ctx, text)
	done()
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	// 2. Map to mood and tag weights
	mood := DominantMood(profile)
	weights := MapEmotions(profile)
	log.Info("pipeline: mood mapped",
		zap.String("mood", string(mood)),
		zap.Strings("top_tags", weights.Primary(5)))

	// 3. Read library
	done = stage("library")
	library, err := o.catalog.LibraryTracks(ctx)
	done()
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrLibraryRead, err)
	}
	if len(library) == 0 {
		return domain.Result{}, domain.ErrLibraryRead
	}
	libraryIDs := make(map[string]struct{}, len(library))
	for _, t := range library {
		if t.ID != "" {
			libraryIDs[t.ID] = struct{}{}
		}
	}

	// 4. Enrich a sample
	sample := library
	if len(sample) > o.params.TagSampleSize {
		sample = sample[:o.params.TagSampleSize]
	}
	done = stage("enrich")
	tagsByID := o.enricher.Enrich(ctx, sample)
	done()
	tagged := make([]domain.Track, 0, len(tagsByID))
	for _, t := range sample {
		if tags, ok := tagsByID[t.ID]; ok {
			tagged = append(tagged, t.WithTags(tags))
		}
	}

	// 5. Score
	scored := o.scorer.Score(tagged, weights, mood)
	log.Info("pipeline: library scored",
		zap.Int("sampled", len(sample)),
		zap.Int("tagged", len(tagged)),
		zap.Int("matched", len(scored)))

	// 6. Recommend
	genres, err := o.catalog.TopGenres(ctx, o.params.TopArtistLimit)
	if err != nil {
		log.Warn("pipeline: top genres unavailable", zap.Error(err))
		genres = nil
	}
	history, err := o.history.Load(ctx)
	if err != nil {
		log.Warn("pipeline: history unavailable, starting empty", zap.Error(err))
		history = domain.History{}
	}
	done = stage("recommend")
	candidates, _ := o.recommender.Recommend(ctx, weights, genres, mood, libraryIDs, history)
	done()

	if len(scored) == 0 && len(candidates) == 0 {
		return domain.Result{}, domain.ErrNoCandidates
	}

	// 7. Assemble
	done = stage("assemble")
	playlist, selected, err := o.assembler.Assemble(ctx, scored, candidates, mood)
	done()
	if err != nil {
		return domain.Result{}, err
	}

	return formatResult(playlist, selected, mood), nil
}

func formatResult(pl domain.Playlist, tracks []domain.Track, mood domain.Mood) domain.Result {
	out := make([]domain.ResultTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, domain.NewResultTrack(t))
	}
	return domain.Result{
		Tracks:       out,
		SpotifyURL:   pl.URL,
		DominantMood: mood,
	}
}

func stage(name string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrClassification):
		return "classification_failed"
	case errors.Is(err, domain.ErrLibraryRead):
		return "library_failed"
	case errors.Is(err, domain.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, domain.ErrPlaylistCreate):
		return "playlist_failed"
	default:
		return "error"
	}
}
